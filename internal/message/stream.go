package message

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatter-client/internal/api"
	"chatter-client/internal/mutation"
)

var ErrEmptyMessage = errors.New("message: content and media are both empty")

type API interface {
	ListMessages(ctx context.Context, conversationID string, page, limit int) ([]api.Message, error)
	SendMessage(ctx context.Context, conversationID, content string, media *api.Media) (api.Message, error)
}

// Hooks are raised after a send is confirmed and after an inbound message is
// added. They run without the stream lock held.
type Hooks struct {
	OnSent     func(api.Message)
	OnReceived func(api.Message)
}

const kindSend = "message.send"

// slot is a message or its absence.
type slot struct {
	Msg *api.Message
}

// Stream is the ordered message list of one open conversation. Confirmed
// messages are kept sorted by time; optimistic sends sit after them until
// the server answers.
type Stream struct {
	id     string
	api    API
	viewer func() api.Person
	hooks  Hooks
	exec   *mutation.Executor[slot]

	mu       sync.Mutex
	messages []api.Message

	ctx    context.Context
	cancel context.CancelFunc
}

func NewStream(conversationID string, client API, viewer func() api.Person, obs mutation.Observer, hooks Hooks) *Stream {
	ctx, cancel := context.WithCancel(context.Background())
	return &Stream{
		id:     conversationID,
		api:    client,
		viewer: viewer,
		hooks:  hooks,
		exec:   mutation.New[slot](obs),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Stream) ConversationID() string { return s.id }

// Close tears the stream down; responses that arrive later are dropped.
func (s *Stream) Close() { s.cancel() }

func (s *Stream) Closed() bool { return s.ctx.Err() != nil }

// LoadMessages fetches a page. Page 1 replaces the confirmed messages; later
// pages hold older messages and are prepended.
func (s *Stream) LoadMessages(ctx context.Context, page, limit int) ([]api.Message, error) {
	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	list, err := s.api.ListMessages(ctx, s.id, page, limit)
	if err := mutation.Settle(ctx, err); err != nil {
		return nil, fmt.Errorf("load messages of %s page %d: %w", s.id, page, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	confirmed, pending := s.splitLocked()
	if page <= 1 {
		confirmed = merge(list, nil)
	} else {
		confirmed = merge(list, confirmed)
	}
	s.messages = append(confirmed, pending...)
	return slices.Clone(s.messages), nil
}

func (s *Stream) splitLocked() (confirmed, pending []api.Message) {
	for _, m := range s.messages {
		if m.Pending {
			pending = append(pending, m)
		} else {
			confirmed = append(confirmed, m)
		}
	}
	return confirmed, pending
}

// merge joins older and newer, drops repeated ids (the newer copy wins) and
// sorts by time.
func merge(older, newer []api.Message) []api.Message {
	seen := make(map[string]int, len(older)+len(newer))
	out := make([]api.Message, 0, len(older)+len(newer))
	for _, m := range slices.Concat(older, newer) {
		if i, ok := seen[m.ID]; ok {
			out[i] = m
			continue
		}
		seen[m.ID] = len(out)
		out = append(out, m)
	}
	slices.SortStableFunc(out, func(a, b api.Message) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

// SendMessage appends a pending message at once and swaps in the server's
// record when it arrives. A failed send removes the pending message.
func (s *Stream) SendMessage(ctx context.Context, content string, media *api.Media) (api.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" && media == nil {
		return api.Message{}, ErrEmptyMessage
	}
	me := s.viewer()
	temp := api.Message{
		ID:             "temp-" + uuid.NewString(),
		ConversationID: s.id,
		SenderID:       me.ID,
		SenderName:     me.Name,
		SenderAvatar:   me.Avatar,
		Content:        content,
		CreatedAt:      time.Now(),
		Pending:        true,
	}

	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	v, err := s.exec.Execute(ctx, mutation.Mutation[slot]{
		Key:        mutation.Key{Entity: temp.ID, Kind: kindSend},
		Optimistic: slot{Msg: &temp},
		Apply:      func(v slot) { s.apply(temp.ID, v) },
		Remote: func(ctx context.Context) (slot, error) {
			m, err := s.api.SendMessage(ctx, s.id, content, media)
			if err != nil {
				return slot{}, err
			}
			return slot{Msg: &m}, nil
		},
		OnSuccess: func(v slot) {
			if s.hooks.OnSent != nil {
				s.hooks.OnSent(*v.Msg)
			}
		},
		OnFailure: func(err error) { log.Printf("[chat] send to %s failed: %v", s.id, err) },
	})
	if err != nil {
		return api.Message{}, fmt.Errorf("send message to %s: %w", s.id, err)
	}
	return *v.Msg, nil
}

func (s *Stream) apply(tempID string, v slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(tempID)
	if v.Msg == nil {
		if i >= 0 {
			s.messages = slices.Delete(s.messages, i, i+1)
		}
		return
	}
	m := *v.Msg
	if m.ID == tempID {
		if i < 0 {
			s.messages = append(s.messages, m)
		}
		return
	}
	// Confirmed: a refresh may already have brought the server copy in.
	if j := s.indexLocked(m.ID); j >= 0 {
		s.messages[j] = m
		if i >= 0 {
			s.messages = slices.Delete(s.messages, i, i+1)
		}
		return
	}
	if i >= 0 {
		s.messages[i] = m
		return
	}
	s.messages = append(s.messages, m)
}

// Receive adds an inbound message found by a refresh. Duplicates and
// messages for a closed stream are ignored.
func (s *Stream) Receive(m api.Message) bool {
	if s.Closed() {
		return false
	}
	s.mu.Lock()
	if s.indexLocked(m.ID) >= 0 {
		s.mu.Unlock()
		return false
	}
	confirmed, pending := s.splitLocked()
	m.Pending = false
	s.messages = append(merge(confirmed, []api.Message{m}), pending...)
	s.mu.Unlock()

	if s.hooks.OnReceived != nil {
		s.hooks.OnReceived(m)
	}
	return true
}

// Refresh fetches the newest page and hands every message not shown yet to
// Receive, so each one raises OnReceived exactly once. It returns the added
// messages in time order.
func (s *Stream) Refresh(ctx context.Context, limit int) ([]api.Message, error) {
	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	list, err := s.api.ListMessages(ctx, s.id, 1, limit)
	if err := mutation.Settle(ctx, err); err != nil {
		return nil, fmt.Errorf("refresh messages of %s: %w", s.id, err)
	}
	var added []api.Message
	for _, m := range merge(list, nil) {
		if s.Receive(m) {
			added = append(added, m)
		}
	}
	return added, nil
}

func (s *Stream) Messages() []api.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

func (s *Stream) indexLocked(id string) int {
	return slices.IndexFunc(s.messages, func(m api.Message) bool { return m.ID == id })
}
