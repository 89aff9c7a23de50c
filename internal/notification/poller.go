package notification

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"chatter-client/internal/api"
	"chatter-client/internal/mutation"
	"chatter-client/internal/session"
)

type API interface {
	ListNotifications(ctx context.Context) ([]api.Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// Recorder receives poll results. The metrics package implements it.
type Recorder interface {
	PollFailed()
	Unread(n int)
}

type nopRecorder struct{}

func (nopRecorder) PollFailed() {}
func (nopRecorder) Unread(int)  {}

type State int

const (
	Idle State = iota
	Polling
)

func (s State) String() string {
	if s == Polling {
		return "polling"
	}
	return "idle"
}

const DefaultInterval = 30 * time.Second

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(p *Poller) {
		if r != nil {
			p.rec = r
		}
	}
}

func WithObserver(o mutation.Observer) Option { return func(p *Poller) { p.obs = o } }

// OnState is called on every idle/polling transition.
func OnState(fn func(State)) Option { return func(p *Poller) { p.onState = fn } }

// Poller keeps the unread badge fresh while a viewer is logged in and holds
// the notification list once opened.
type Poller struct {
	api      API
	interval time.Duration
	rec      Recorder
	obs      mutation.Observer
	onState  func(State)

	mu     sync.Mutex
	state  State
	unread int
	items  []api.Notification
	runCtx context.Context
	stop   func()
	wg     sync.WaitGroup
	unbind func()

	// stops counts Stop calls and opens counts badge resets; a response that
	// started under an older value is dropped.
	stops uint64
	opens uint64
}

func New(client API, opts ...Option) *Poller {
	p := &Poller{
		api:      client,
		interval: DefaultInterval,
		rec:      nopRecorder{},
		obs:      mutation.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Bind starts polling whenever sess has a viewer and stops on logout.
func (p *Poller) Bind(sess *session.Session) {
	unbind := sess.Subscribe(func(st session.State) {
		if st == session.LoggedIn {
			p.Start()
			return
		}
		p.Stop()
	})
	p.mu.Lock()
	p.unbind = unbind
	p.mu.Unlock()
}

func (p *Poller) Start() {
	p.mu.Lock()
	if p.state == Polling {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	p.stop = func() { once.Do(cancel) }
	p.runCtx = ctx
	p.state = Polling
	p.wg.Add(1)
	p.mu.Unlock()

	log.Printf("[poller] started, interval %s", p.interval)
	p.transition(Polling)
	go p.run(ctx)
}

// Stop cancels the current run. It does not wait for the loop to exit, so it
// is safe to call from a request that is itself being polled.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state != Polling {
		p.mu.Unlock()
		return
	}
	stop := p.stop
	p.stop = nil
	p.runCtx = nil
	p.stops++
	p.state = Idle
	p.unread = 0
	p.items = nil
	p.mu.Unlock()

	stop()
	p.rec.Unread(0)
	log.Printf("[poller] stopped")
	p.transition(Idle)
}

// Close unbinds from the session, stops polling and waits for the loop.
func (p *Poller) Close() {
	p.mu.Lock()
	unbind := p.unbind
	p.unbind = nil
	p.mu.Unlock()
	if unbind != nil {
		unbind()
	}
	p.Stop()
	p.wg.Wait()
}

func (p *Poller) transition(st State) {
	if p.onState != nil {
		p.onState(st)
	}
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()
	t := time.NewTicker(p.interval)
	defer t.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.poll(ctx)
		}
	}
}

// poll never surfaces errors; a failed tick leaves the badge as it was. A
// count fetched before the list was opened is stale and dropped.
func (p *Poller) poll(ctx context.Context) {
	p.mu.Lock()
	opens := p.opens
	p.mu.Unlock()

	n, err := p.api.UnreadCount(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		p.rec.PollFailed()
		log.Printf("[poller] unread count failed: %v", err)
		return
	}
	p.mu.Lock()
	if p.state != Polling || ctx.Err() != nil || p.opens != opens {
		p.mu.Unlock()
		return
	}
	p.unread = n
	p.mu.Unlock()
	p.rec.Unread(n)
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) Unread() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unread
}

// Open zeroes the badge at once and then loads the list. While polling, the
// fetch belongs to the current run: a Stop in the meantime discards it.
func (p *Poller) Open(ctx context.Context) ([]api.Notification, error) {
	p.mu.Lock()
	p.unread = 0
	p.opens++
	stops, run := p.stops, p.runCtx
	p.mu.Unlock()
	p.rec.Unread(0)

	if run != nil {
		var stop context.CancelFunc
		ctx, stop = mutation.Within(ctx, run)
		defer stop()
	}
	list, err := p.api.ListNotifications(ctx)
	if err := mutation.Settle(ctx, err); err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stops != stops {
		return nil, fmt.Errorf("load notifications: %w", mutation.ErrDiscarded)
	}
	p.items = slices.Clone(list)
	return slices.Clone(p.items), nil
}

func (p *Poller) Notifications() []api.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.items)
}

// MarkRead flips one notification to read. The server call is best effort:
// a failure is logged and the local flag stays.
func (p *Poller) MarkRead(ctx context.Context, id string) {
	key := mutation.Key{Entity: id, Kind: "notification.read"}
	_ = mutation.BestEffort(ctx, p.obs, key, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if i := slices.IndexFunc(p.items, func(n api.Notification) bool { return n.ID == id }); i >= 0 {
			p.items[i].Read = true
		}
	}, func(ctx context.Context) error {
		return p.api.MarkNotificationRead(ctx, id)
	})
}

func (p *Poller) MarkAllRead(ctx context.Context) {
	key := mutation.Key{Entity: "*", Kind: "notification.read_all"}
	_ = mutation.BestEffort(ctx, p.obs, key, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i := range p.items {
			p.items[i].Read = true
		}
		p.unread = 0
		p.opens++
	}, p.api.MarkAllNotificationsRead)
}
