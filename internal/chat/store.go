package chat

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"chatter-client/internal/api"
	"chatter-client/internal/message"
	"chatter-client/internal/mutation"
	"chatter-client/internal/session"
)

type API interface {
	message.API
	GetOrCreateConversation(ctx context.Context, targetUserID string) (api.Conversation, error)
	ListConversations(ctx context.Context) ([]api.Conversation, error)
}

// mediaPreview stands in for the preview of a message without text.
const mediaPreview = "[media]"

// Store is the conversation list, kept newest activity first, and the
// message streams opened from it.
type Store struct {
	api  API
	sess *session.Session
	obs  mutation.Observer

	mu      sync.Mutex
	convs   []api.Conversation
	streams map[string]*message.Stream

	ctx    context.Context
	cancel context.CancelFunc
}

func New(client API, sess *session.Session, obs mutation.Observer) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		api:     client,
		sess:    sess,
		obs:     obs,
		streams: make(map[string]*message.Stream),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Close tears down the store and every open stream.
func (s *Store) Close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, st := range s.streams {
		st.Close()
		delete(s.streams, id)
	}
}

func (s *Store) FetchConversations(ctx context.Context) ([]api.Conversation, error) {
	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	list, err := s.api.ListConversations(ctx)
	if err := mutation.Settle(ctx, err); err != nil {
		return nil, fmt.Errorf("fetch conversations: %w", err)
	}
	list = slices.Clone(list)
	slices.SortStableFunc(list, func(a, b api.Conversation) int {
		return b.LastActivity.Compare(a.LastActivity)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs = list
	return slices.Clone(s.convs), nil
}

// GetOrStartConversation returns the conversation with target, creating it
// on the server only when none is known locally.
func (s *Store) GetOrStartConversation(ctx context.Context, targetID string) (api.Conversation, error) {
	if c, ok := s.find(func(c api.Conversation) bool { return c.OtherUserID == targetID }); ok {
		return c, nil
	}

	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	c, err := s.api.GetOrCreateConversation(ctx, targetID)
	if err := mutation.Settle(ctx, err); err != nil {
		return api.Conversation{}, fmt.Errorf("start conversation with %s: %w", targetID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.IndexFunc(s.convs, func(x api.Conversation) bool { return x.ID == c.ID }); i >= 0 {
		return s.convs[i], nil
	}
	s.convs = slices.Insert(s.convs, 0, c)
	return c, nil
}

// Touch moves a conversation to the top and updates its preview.
func (s *Store) Touch(id, preview string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.convs, func(c api.Conversation) bool { return c.ID == id })
	if i < 0 {
		return false
	}
	c := s.convs[i]
	c.LastMessage = preview
	if !at.IsZero() {
		c.LastActivity = at
	}
	s.convs = slices.Delete(s.convs, i, i+1)
	s.convs = slices.Insert(s.convs, 0, c)
	return true
}

// Open returns the stream for a conversation, creating it if needed. The
// stream's send and receive events move the conversation to the top.
func (s *Store) Open(id string) *message.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.streams[id]; ok && !st.Closed() {
		return st
	}
	touch := func(m api.Message) { s.Touch(id, previewOf(m), m.CreatedAt) }
	viewer := func() api.Person {
		v, _ := s.sess.Viewer()
		return v
	}
	st := message.NewStream(id, s.api, viewer, s.obs, message.Hooks{OnSent: touch, OnReceived: touch})
	if s.ctx.Err() != nil {
		st.Close()
		return st
	}
	s.streams[id] = st
	return st
}

func (s *Store) CloseStream(id string) {
	s.mu.Lock()
	st, ok := s.streams[id]
	delete(s.streams, id)
	s.mu.Unlock()
	if ok {
		st.Close()
	}
}

func (s *Store) Conversations() []api.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.convs)
}

func (s *Store) Conversation(id string) (api.Conversation, bool) {
	return s.find(func(c api.Conversation) bool { return c.ID == id })
}

func (s *Store) find(match func(api.Conversation) bool) (api.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.IndexFunc(s.convs, match); i >= 0 {
		return s.convs[i], true
	}
	return api.Conversation{}, false
}

func previewOf(m api.Message) string {
	if m.Content != "" {
		return m.Content
	}
	return mediaPreview
}
