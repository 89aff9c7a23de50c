package mutation

import (
	"context"
	"log"
	"time"
)

type Outcome string

const (
	Committed  Outcome = "committed"
	RolledBack Outcome = "rolled_back"
	Stale      Outcome = "stale"
	Discarded  Outcome = "discarded"
	// Unconfirmed marks a best-effort mutation whose remote call failed but
	// whose local value was kept.
	Unconfirmed Outcome = "unconfirmed"
)

type Event struct {
	Key      Key
	Outcome  Outcome
	Err      error
	Duration time.Duration
	At       time.Time
}

type Observer interface {
	Observe(ev Event)
}

type ObserverFunc func(ev Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }

type nop struct{}

func (nop) Observe(Event) {}

func Nop() Observer { return nop{} }

type multi []Observer

func (m multi) Observe(ev Event) {
	for _, o := range m {
		o.Observe(ev)
	}
}

// Observers fans every event out to each non-nil observer in order.
func Observers(obs ...Observer) Observer {
	out := make(multi, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

// BestEffort applies a local change that is never reverted, then runs remote.
// A failed remote call is logged and reported as Unconfirmed.
func BestEffort(ctx context.Context, obs Observer, key Key, apply func(), remote func(ctx context.Context) error) error {
	if obs == nil {
		obs = Nop()
	}
	start := time.Now()
	apply()
	err := remote(ctx)
	outcome := Committed
	if err != nil {
		outcome = Unconfirmed
		log.Printf("[mutation] %s not confirmed: %v", key, err)
	}
	obs.Observe(Event{Key: key, Outcome: outcome, Err: err, Duration: time.Since(start), At: time.Now()})
	return err
}
