package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"chatter-client/internal/api"
	"chatter-client/internal/shared/jwt"
)

type State int

const (
	LoggedOut State = iota
	LoggedIn
)

func (s State) String() string {
	if s == LoggedIn {
		return "logged_in"
	}
	return "logged_out"
}

var ErrNoSession = errors.New("no stored session")

// Snapshot is what survives a restart: the credential and the viewer record.
type Snapshot struct {
	Token  string     `json:"token"`
	Viewer api.Person `json:"user"`
}

type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
	Clear(ctx context.Context) error
}

// Session owns the viewer identity and the Person cache. It is created at
// startup and cleared on logout; auth state changes are pushed to
// subscribers.
type Session struct {
	mu     sync.RWMutex
	token  string
	viewer *api.Person
	people *People
	store  Store

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int
}

func New(store Store) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Session{
		people: newPeople(),
		store:  store,
		subs:   make(map[int]func(State)),
	}
}

// Restore loads a stored session. An expired or unreadable token is cleared.
func (s *Session) Restore(ctx context.Context) error {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	uid, err := jwt.Parse(snap.Token)
	if err != nil {
		_ = s.store.Clear(ctx)
		return fmt.Errorf("stored session rejected: %w", errors.Join(ErrNoSession, err))
	}
	if snap.Viewer.ID == "" {
		snap.Viewer.ID = uid
	}
	s.set(snap.Token, snap.Viewer)
	return nil
}

// Login installs a credential. The viewer id falls back to the token subject.
func (s *Session) Login(ctx context.Context, token string, viewer api.Person) error {
	uid, err := jwt.Parse(token)
	if err != nil {
		return err
	}
	if viewer.ID == "" {
		viewer.ID = uid
	}
	if err := s.store.Save(ctx, Snapshot{Token: token, Viewer: viewer}); err != nil {
		log.Printf("[session] persist failed: %v", err)
	}
	s.set(token, viewer)
	return nil
}

func (s *Session) set(token string, viewer api.Person) {
	s.mu.Lock()
	was := s.viewer != nil
	s.token = token
	s.viewer = &viewer
	s.mu.Unlock()

	s.people.Put(viewer)
	if !was {
		s.notify(LoggedIn)
	}
}

// Logout drops the credential, clears the Person cache and notifies
// subscribers. Calling it while logged out does nothing.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	was := s.viewer != nil
	s.token = ""
	s.viewer = nil
	s.mu.Unlock()

	if !was {
		return
	}
	s.people.clear()
	if err := s.store.Clear(ctx); err != nil {
		log.Printf("[session] clear failed: %v", err)
	}
	s.notify(LoggedOut)
}

// Invalidate is the 401 hook: the credential is no longer accepted.
func (s *Session) Invalidate() {
	log.Printf("[session] credential rejected by api, logging out")
	s.Logout(context.Background())
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Viewer() (api.Person, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.viewer == nil {
		return api.Person{}, false
	}
	return *s.viewer, true
}

func (s *Session) ViewerID() string {
	v, _ := s.Viewer()
	return v.ID
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewer != nil && s.token != ""
}

func (s *Session) State() State {
	if s.Authenticated() {
		return LoggedIn
	}
	return LoggedOut
}

func (s *Session) People() *People { return s.people }

// Subscribe calls fn with the current state and then on every transition.
func (s *Session) Subscribe(fn func(State)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	fn(s.State())

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Session) notify(st State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
