package chat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatter-client/internal/api"
	"chatter-client/internal/session/sessiontest"
)

type fakeAPI struct {
	convs   []api.Conversation
	creates int
	inbound []api.Message
}

func (f *fakeAPI) ListConversations(context.Context) ([]api.Conversation, error) {
	return f.convs, nil
}

func (f *fakeAPI) GetOrCreateConversation(_ context.Context, target string) (api.Conversation, error) {
	f.creates++
	return api.Conversation{ID: "c-" + target, OtherUserID: target, OtherUserName: gofakeit.Name()}, nil
}

func (f *fakeAPI) ListMessages(context.Context, string, int, int) ([]api.Message, error) {
	return f.inbound, nil
}

func (f *fakeAPI) SendMessage(_ context.Context, id, content string, _ *api.Media) (api.Message, error) {
	return api.Message{ID: "m1", ConversationID: id, SenderID: "me", Content: content, CreatedAt: time.Now()}, nil
}

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func fakeConvs(n int) []api.Conversation {
	out := make([]api.Conversation, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, api.Conversation{
			ID:            fmt.Sprintf("c%d", i+1),
			OtherUserID:   fmt.Sprintf("u%d", i+1),
			OtherUserName: gofakeit.Name(),
			LastMessage:   gofakeit.Sentence(3),
			LastActivity:  t0.Add(time.Duration(i) * time.Hour),
		})
	}
	return out
}

func convIDs(list []api.Conversation) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.ID)
	}
	return out
}

func newStore(t *testing.T, f *fakeAPI) *Store {
	t.Helper()
	sess := sessiontest.LoggedIn(t, api.Person{ID: "me", Name: "Me"})
	s := New(f, sess, nil)
	t.Cleanup(s.Close)
	_, err := s.FetchConversations(context.Background())
	require.NoError(t, err)
	return s
}

func TestFetchSortsByActivity(t *testing.T) {
	s := newStore(t, &fakeAPI{convs: fakeConvs(3)})
	assert.Equal(t, []string{"c3", "c2", "c1"}, convIDs(s.Conversations()))
}

func TestGetOrStartIsIdempotent(t *testing.T) {
	f := &fakeAPI{convs: fakeConvs(2)}
	s := newStore(t, f)
	ctx := context.Background()

	c, err := s.GetOrStartConversation(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
	assert.Zero(t, f.creates)

	first, err := s.GetOrStartConversation(ctx, "u9")
	require.NoError(t, err)
	second, err := s.GetOrStartConversation(ctx, "u9")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.creates)
	assert.Equal(t, []string{"c-u9", "c2", "c1"}, convIDs(s.Conversations()))
}

func TestTouchMovesToTop(t *testing.T) {
	s := newStore(t, &fakeAPI{convs: fakeConvs(3)})
	at := t0.Add(24 * time.Hour)

	assert.True(t, s.Touch("c1", "hey", at))
	assert.False(t, s.Touch("nope", "hey", at))

	list := s.Conversations()
	assert.Equal(t, []string{"c1", "c3", "c2"}, convIDs(list))
	assert.Equal(t, "hey", list[0].LastMessage)
	assert.Equal(t, at, list[0].LastActivity)
}

func TestStreamEventsTouchConversation(t *testing.T) {
	f := &fakeAPI{convs: fakeConvs(3)}
	s := newStore(t, f)
	ctx := context.Background()

	st := s.Open("c1")
	assert.Same(t, st, s.Open("c1"))

	_, err := st.SendMessage(ctx, "sent text", nil)
	require.NoError(t, err)
	c, _ := s.Conversation("c1")
	assert.Equal(t, "sent text", c.LastMessage)
	assert.Equal(t, "c1", s.Conversations()[0].ID)

	f.inbound = []api.Message{{ID: "r1", SenderID: "u2", MediaURL: "https://cdn/x.png", CreatedAt: time.Now()}}
	added, err := s.Open("c2").Refresh(ctx, 30)
	require.NoError(t, err)
	require.Len(t, added, 1)
	list := s.Conversations()
	assert.Equal(t, "c2", list[0].ID)
	assert.Equal(t, mediaPreview, list[0].LastMessage)
}

func TestCloseStreamTearsDown(t *testing.T) {
	s := newStore(t, &fakeAPI{convs: fakeConvs(1)})
	st := s.Open("c1")
	s.CloseStream("c1")
	assert.True(t, st.Closed())
	assert.NotSame(t, st, s.Open("c1"))
}
