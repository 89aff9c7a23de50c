package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"chatter-client/configs"
	"chatter-client/internal/api"
	"chatter-client/internal/chat"
	"chatter-client/internal/feed"
	"chatter-client/internal/follow"
	"chatter-client/internal/kafka"
	"chatter-client/internal/metrics"
	"chatter-client/internal/mutation"
	"chatter-client/internal/notification"
	"chatter-client/internal/session"
	"chatter-client/internal/shared/httpx"
	"chatter-client/internal/shared/redisx"
	"chatter-client/internal/shared/tracing"
)

// App is the engine wired for one CLI invocation.
type App struct {
	cfg      *configs.Config
	sess     *session.Session
	client   *api.Client
	metrics  *metrics.Collector
	registry *prometheus.Registry

	feed   *feed.Store
	follow *follow.Store
	chat   *chat.Store
	notify *notification.Poller

	closers []func()
}

func newApp(ctx context.Context, cfg *configs.Config) *App {
	a := &App{cfg: cfg}

	shutdown := tracing.Init(ctx, tracing.Options{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.ServiceName,
		Env:         cfg.Env,
		Ratio:       cfg.OTELSampler,
	})
	a.onClose(func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(c)
	})

	// Session
	store := session.NewMemoryStore()
	if cfg.RedisEnabled() {
		rc, err := redisx.Open(ctx, cfg.RedisAddr())
		if err != nil {
			log.Printf("[redis] %s unavailable, session will not persist: %v", cfg.RedisAddr(), err)
		} else {
			store = session.NewRedisStore(rc.R, cfg.SessionKey)
			a.onClose(func() { _ = rc.Close() })
		}
	}
	a.sess = session.New(store)
	if err := a.sess.Restore(ctx); err != nil && !errors.Is(err, session.ErrNoSession) {
		log.Printf("[session] restore: %v", err)
	}

	// Observers
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)
	observers := []mutation.Observer{a.metrics}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		w := kafka.NewWriter(brokers, cfg.KafkaTopic)
		a.onClose(func() { _ = w.Close() })
		observers = append(observers, kafka.NewJournal(w, cfg.ServiceName))
	}
	obs := mutation.Observers(observers...)

	// Transport
	a.client = api.New(cfg.APIBaseURL,
		api.WithHTTPClient(httpx.NewClient(cfg.HTTPTimeout)),
		api.WithToken(a.sess.Token),
		api.OnUnauthorized(a.sess.Invalidate),
	)

	// Stores
	a.feed = feed.New(a.client, a.sess, obs)
	a.follow = follow.New(a.client, a.sess, obs)
	a.chat = chat.New(a.client, a.sess, obs)
	a.notify = notification.New(a.client,
		notification.WithInterval(cfg.PollInterval),
		notification.WithRecorder(a.metrics),
		notification.WithObserver(obs),
	)
	a.onClose(a.feed.Close)
	a.onClose(a.follow.Close)
	a.onClose(a.chat.Close)
	a.onClose(a.notify.Close)
	return a
}

func (a *App) onClose(fn func()) { a.closers = append(a.closers, fn) }

// Close releases everything in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *App) requireLogin() error {
	if !a.sess.Authenticated() {
		return feed.ErrLoginRequired
	}
	return nil
}
