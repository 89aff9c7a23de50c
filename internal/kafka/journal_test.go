package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatter-client/internal/mutation"
)

type captured struct {
	key   string
	value []byte
}

type fakePublisher struct {
	got []captured
	err error
}

func (f *fakePublisher) Publish(_ context.Context, key string, value []byte) error {
	f.got = append(f.got, captured{key: key, value: value})
	return f.err
}

func TestJournalPublishesOutcome(t *testing.T) {
	pub := &fakePublisher{}
	j := NewJournal(pub, "cli")
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	j.Observe(mutation.Event{
		Key:      mutation.Key{Entity: "p1", Kind: "like"},
		Outcome:  mutation.RolledBack,
		Err:      errors.New("offline"),
		Duration: 1500 * time.Microsecond,
		At:       at,
	})

	require.Len(t, pub.got, 1)
	assert.Equal(t, "p1", pub.got[0].key)
	var ev Event
	require.NoError(t, json.Unmarshal(pub.got[0].value, &ev))
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "cli", ev.Source)
	assert.Equal(t, "like", ev.Kind)
	assert.Equal(t, "rolled_back", ev.Outcome)
	assert.Equal(t, "offline", ev.Error)
	assert.InDelta(t, 1.5, ev.DurationMS, 0.001)
	assert.Equal(t, "2026-01-02T03:04:05Z", ev.At)
}

func TestJournalSwallowsPublishErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	j := NewJournal(pub, "cli")
	assert.NotPanics(t, func() {
		j.Observe(mutation.Event{Key: mutation.Key{Entity: "u1", Kind: "follow"}, Outcome: mutation.Committed})
	})
	assert.Len(t, pub.got, 1)
}
