package mutation

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrDiscarded is returned when the caller's context ended before the remote
// call resolved. Nothing is applied in that case.
var ErrDiscarded = errors.New("mutation: response discarded after teardown")

// Key identifies the (entity, operation kind) pair a rollback target belongs to.
type Key struct {
	Entity string
	Kind   string
}

func (k Key) String() string { return k.Kind + ":" + k.Entity }

// Mutation describes one optimistic change.
//
// Apply writes a value into the owning store. It is called with the
// optimistic value before Remote runs, and with either the canonical value
// or the rollback target afterwards. Apply must not call back into the
// executor.
type Mutation[V any] struct {
	Key        Key
	Current    V
	Optimistic V
	Apply      func(V)
	Remote     func(ctx context.Context) (V, error)
	OnSuccess  func(V)
	OnFailure  func(error)
}

type keyState[V any] struct {
	confirmed    V
	confirmedSeq uint64
	seq          uint64
	pending      map[uint64]struct{}
}

func (st *keyState[V]) newerPending(seq uint64) bool {
	for s := range st.pending {
		if s > seq {
			return true
		}
	}
	return false
}

// Executor runs optimistic mutations for one value type. The rollback target
// for a key is the last server-confirmed value: the first in-flight mutation
// records the caller's Current, and every mutation issued while it is still
// pending reuses that record.
type Executor[V any] struct {
	mu     sync.Mutex
	keys   map[Key]*keyState[V]
	obs    Observer
	tracer trace.Tracer
}

func New[V any](obs Observer) *Executor[V] {
	if obs == nil {
		obs = Nop()
	}
	return &Executor[V]{
		keys:   make(map[Key]*keyState[V]),
		obs:    obs,
		tracer: otel.Tracer("chatter-client/mutation"),
	}
}

// Execute applies m.Optimistic, waits for m.Remote and then commits or rolls
// back. It returns the canonical value or the remote error.
func (e *Executor[V]) Execute(ctx context.Context, m Mutation[V]) (V, error) {
	var zero V
	ctx, span := e.tracer.Start(ctx, "mutation."+m.Key.Kind,
		trace.WithAttributes(attribute.String("mutation.entity", m.Key.Entity)))
	defer span.End()

	start := time.Now()
	seq := e.begin(m)

	val, err := m.Remote(ctx)
	if ctx.Err() != nil {
		e.abandon(m.Key, seq)
		e.report(m.Key, Discarded, ctx.Err(), start)
		span.SetStatus(codes.Error, "discarded")
		return zero, ErrDiscarded
	}
	if err != nil {
		e.rollback(m, seq)
		e.report(m.Key, RolledBack, err, start)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if m.OnFailure != nil {
			m.OnFailure(err)
		}
		return zero, err
	}

	if stale := e.commit(m, seq, val); stale {
		e.report(m.Key, Stale, nil, start)
		return val, nil
	}
	e.report(m.Key, Committed, nil, start)
	if m.OnSuccess != nil {
		m.OnSuccess(val)
	}
	return val, nil
}

// Pending reports how many mutations are in flight for key.
func (e *Executor[V]) Pending(key Key) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.keys[key]; ok {
		return len(st.pending)
	}
	return 0
}

func (e *Executor[V]) begin(m Mutation[V]) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.keys[m.Key]
	if !ok {
		st = &keyState[V]{confirmed: m.Current, pending: make(map[uint64]struct{})}
		e.keys[m.Key] = st
	}
	st.seq++
	seq := st.seq
	st.pending[seq] = struct{}{}
	m.Apply(m.Optimistic)
	return seq
}

func (e *Executor[V]) commit(m Mutation[V], seq uint64, val V) (stale bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.keys[m.Key]
	delete(st.pending, seq)
	defer e.release(m.Key, st)

	if seq < st.confirmedSeq {
		return true
	}
	st.confirmed = val
	st.confirmedSeq = seq
	if !st.newerPending(seq) {
		m.Apply(st.confirmed)
	}
	return false
}

func (e *Executor[V]) rollback(m Mutation[V], seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.keys[m.Key]
	delete(st.pending, seq)
	defer e.release(m.Key, st)

	if !st.newerPending(seq) {
		m.Apply(st.confirmed)
	}
}

func (e *Executor[V]) abandon(key Key, seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.keys[key]
	delete(st.pending, seq)
	e.release(key, st)
}

// release drops the key record once nothing is in flight; the next mutation
// then starts from the store's current value.
func (e *Executor[V]) release(key Key, st *keyState[V]) {
	if len(st.pending) == 0 {
		delete(e.keys, key)
	}
}

func (e *Executor[V]) report(key Key, outcome Outcome, err error, start time.Time) {
	e.obs.Observe(Event{
		Key:      key,
		Outcome:  outcome,
		Err:      err,
		Duration: time.Since(start),
		At:       time.Now(),
	})
}
