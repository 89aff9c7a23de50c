package message

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatter-client/internal/api"
	"chatter-client/internal/mutation"
)

type fakeAPI struct {
	history []api.Message // oldest first
	sends   atomic.Int32
	send    func(ctx context.Context, content string) (api.Message, error)
}

// ListMessages serves newest-first pages the way the server does.
func (f *fakeAPI) ListMessages(_ context.Context, _ string, page, limit int) ([]api.Message, error) {
	end := len(f.history) - (page-1)*limit
	if end <= 0 {
		return nil, nil
	}
	start := max(end-limit, 0)
	out := slices.Clone(f.history[start:end])
	slices.Reverse(out)
	return out, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, _ string, content string, _ *api.Media) (api.Message, error) {
	f.sends.Add(1)
	return f.send(ctx, content)
}

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func history(n int) []api.Message {
	out := make([]api.Message, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, api.Message{
			ID:             fmt.Sprintf("m%02d", i),
			ConversationID: "c1",
			SenderID:       []string{"me", "u2"}[i%2],
			Content:        gofakeit.Sentence(4),
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

func me() api.Person { return api.Person{ID: "me", Name: "Me"} }

func newStream(t *testing.T, f *fakeAPI, hooks Hooks) *Stream {
	t.Helper()
	s := NewStream("c1", f, me, mutation.Nop(), hooks)
	t.Cleanup(s.Close)
	return s
}

func msgIDs(list []api.Message) []string {
	out := make([]string, 0, len(list))
	for _, m := range list {
		out = append(out, m.ID)
	}
	return out
}

func TestLoadMessagesPagesOlderHistory(t *testing.T) {
	f := &fakeAPI{history: history(50)}
	s := newStream(t, f, Hooks{})
	ctx := context.Background()

	first, err := s.LoadMessages(ctx, 1, 30)
	require.NoError(t, err)
	require.Len(t, first, 30)
	assert.Equal(t, "m20", first[0].ID)

	all, err := s.LoadMessages(ctx, 2, 30)
	require.NoError(t, err)
	require.Len(t, all, 50)
	assert.True(t, slices.IsSortedFunc(all, func(a, b api.Message) int { return a.CreatedAt.Compare(b.CreatedAt) }))
	assert.Equal(t, msgIDs(f.history), msgIDs(all))
}

func TestLoadMessagesDeduplicates(t *testing.T) {
	f := &fakeAPI{history: history(10)}
	s := newStream(t, f, Hooks{})
	ctx := context.Background()

	_, err := s.LoadMessages(ctx, 1, 6)
	require.NoError(t, err)
	// A new message shifts page boundaries so page 2 overlaps page 1.
	f.history = append(f.history, api.Message{ID: "m10", SenderID: "u2", Content: "late", CreatedAt: base.Add(time.Hour)})
	all, err := s.LoadMessages(ctx, 2, 6)
	require.NoError(t, err)

	ids := msgIDs(all)
	assert.Len(t, ids, len(slices.Compact(slices.Clone(ids))))
	assert.Len(t, all, 10)
}

func TestSendMessageFailureRemovesPending(t *testing.T) {
	f := &fakeAPI{history: history(3)}
	s := newStream(t, f, Hooks{})
	ctx := context.Background()
	_, err := s.LoadMessages(ctx, 1, 30)
	require.NoError(t, err)

	var during []api.Message
	f.send = func(context.Context, string) (api.Message, error) {
		during = s.Messages()
		return api.Message{}, errors.New("offline")
	}

	_, err = s.SendMessage(ctx, "hello", nil)
	require.Error(t, err)
	require.Len(t, during, 4)
	assert.True(t, during[3].Pending)
	assert.Equal(t, "hello", during[3].Content)
	assert.Len(t, s.Messages(), 3)
}

func TestSendMessageSwapsCanonical(t *testing.T) {
	f := &fakeAPI{history: history(2)}
	var sent []api.Message
	s := newStream(t, f, Hooks{OnSent: func(m api.Message) { sent = append(sent, m) }})
	ctx := context.Background()
	_, err := s.LoadMessages(ctx, 1, 30)
	require.NoError(t, err)

	f.send = func(_ context.Context, content string) (api.Message, error) {
		return api.Message{ID: "m99", ConversationID: "c1", SenderID: "me", Content: content, CreatedAt: time.Now()}, nil
	}
	m, err := s.SendMessage(ctx, " hi ", nil)
	require.NoError(t, err)
	assert.Equal(t, "m99", m.ID)

	got := s.Messages()
	require.Len(t, got, 3)
	assert.Equal(t, "m99", got[2].ID)
	assert.False(t, got[2].Pending)
	require.Len(t, sent, 1)
	assert.Equal(t, "hi", sent[0].Content)
}

func TestSendMessageRejectsEmpty(t *testing.T) {
	f := &fakeAPI{}
	s := newStream(t, f, Hooks{})

	_, err := s.SendMessage(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Zero(t, f.sends.Load())
	assert.Empty(t, s.Messages())
}

func TestRefreshKeepsPendingAtTail(t *testing.T) {
	f := &fakeAPI{history: history(4)}
	s := newStream(t, f, Hooks{})
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	f.send = func(_ context.Context, content string) (api.Message, error) {
		close(started)
		<-release
		return api.Message{ID: "m99", SenderID: "me", Content: content, CreatedAt: time.Now()}, nil
	}
	done := make(chan error, 1)
	go func() {
		_, err := s.SendMessage(ctx, "queued", nil)
		done <- err
	}()
	<-started

	got, err := s.LoadMessages(ctx, 1, 30)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.True(t, got[4].Pending)

	close(release)
	require.NoError(t, <-done)
	got = s.Messages()
	require.Len(t, got, 5)
	assert.Equal(t, "m99", got[4].ID)
}

func TestReceiveRaisesHookOnce(t *testing.T) {
	f := &fakeAPI{history: history(2)}
	var received int
	s := newStream(t, f, Hooks{OnReceived: func(api.Message) { received++ }})
	_, err := s.LoadMessages(context.Background(), 1, 30)
	require.NoError(t, err)

	in := api.Message{ID: "m50", SenderID: "u2", Content: "yo", CreatedAt: base.Add(time.Hour)}
	assert.True(t, s.Receive(in))
	assert.False(t, s.Receive(in))
	assert.Equal(t, 1, received)
	assert.Equal(t, "m50", s.Messages()[2].ID)

	s.Close()
	assert.False(t, s.Receive(api.Message{ID: "m51", Content: "x"}))
}

func TestCloseDiscardsLateSend(t *testing.T) {
	f := &fakeAPI{}
	s := newStream(t, f, Hooks{OnSent: func(api.Message) { t.Error("hook after close") }})
	started := make(chan struct{})
	f.send = func(ctx context.Context, content string) (api.Message, error) {
		close(started)
		<-ctx.Done()
		return api.Message{ID: "m1", Content: content}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.SendMessage(context.Background(), "bye", nil)
		done <- err
	}()
	<-started
	s.Close()
	assert.ErrorIs(t, <-done, mutation.ErrDiscarded)
}

func TestRefreshReceivesOnlyNewMessages(t *testing.T) {
	f := &fakeAPI{history: history(10)}
	var received []string
	s := newStream(t, f, Hooks{OnReceived: func(m api.Message) { received = append(received, m.ID) }})
	ctx := context.Background()
	_, err := s.LoadMessages(ctx, 1, 30)
	require.NoError(t, err)

	added, err := s.Refresh(ctx, 30)
	require.NoError(t, err)
	assert.Empty(t, added)

	f.history = append(f.history,
		api.Message{ID: "m10", SenderID: "u2", Content: "hi", CreatedAt: base.Add(10 * time.Minute)},
		api.Message{ID: "m11", SenderID: "u2", Content: "there", CreatedAt: base.Add(11 * time.Minute)},
	)
	added, err = s.Refresh(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"m10", "m11"}, msgIDs(added))
	assert.Equal(t, []string{"m10", "m11"}, received)
	assert.Len(t, s.Messages(), 12)
	assert.Equal(t, "m11", s.Messages()[11].ID)
}
