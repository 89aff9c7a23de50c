package kafka

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"chatter-client/internal/mutation"
)

type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Event is the journal record of one settled mutation.
type Event struct {
	ID         string  `json:"id"`
	Source     string  `json:"source"`
	Kind       string  `json:"kind"`
	Entity     string  `json:"entity"`
	Outcome    string  `json:"outcome"`
	Error      string  `json:"error,omitempty"`
	DurationMS float64 `json:"duration_ms"`
	At         string  `json:"at"`
}

// Journal publishes every mutation outcome, keyed by entity so one entity's
// history stays on one partition.
type Journal struct {
	pub    Publisher
	source string
}

func NewJournal(pub Publisher, source string) *Journal {
	return &Journal{pub: pub, source: source}
}

func (j *Journal) Observe(ev mutation.Event) {
	rec := Event{
		ID:         uuid.NewString(),
		Source:     j.source,
		Kind:       ev.Key.Kind,
		Entity:     ev.Key.Entity,
		Outcome:    string(ev.Outcome),
		DurationMS: float64(ev.Duration) / float64(time.Millisecond),
		At:         ev.At.UTC().Format(time.RFC3339Nano),
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		log.Printf("[journal] marshal: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := j.pub.Publish(ctx, ev.Key.Entity, b); err != nil {
		log.Printf("[journal] publish %s failed: %v", ev.Key, err)
	}
}
