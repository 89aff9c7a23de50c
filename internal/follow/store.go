package follow

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"

	"chatter-client/internal/api"
	"chatter-client/internal/mutation"
	"chatter-client/internal/session"
)

type API interface {
	ToggleFollow(ctx context.Context, userID string) (api.FollowState, error)
	FollowStatus(ctx context.Context, userID string) (bool, error)
	Followers(ctx context.Context, userID string) ([]api.Person, error)
	Following(ctx context.Context, userID string) ([]api.Person, error)
	Recommended(ctx context.Context) ([]api.Person, error)
	FollowStats(ctx context.Context, userID string) (api.FollowStats, error)
	FollowingIDs(ctx context.Context) ([]string, error)
	Profile(ctx context.Context, username string) (api.Person, error)
}

const kindFollow = "follow"

// Store holds the viewer's follow graph: the set of followed ids and three
// person lists (recommended, followers, following). The lists hold ids only;
// records live in the session Person cache, which this store is the only
// writer of follow fields for.
//
// An id is never in both recommended and following.
type Store struct {
	api    API
	sess   *session.Session
	people *session.People
	exec   *mutation.Executor[api.FollowState]

	mu          sync.Mutex
	followed    map[string]struct{}
	recommended []string
	followers   []string
	following   []string

	ctx    context.Context
	cancel context.CancelFunc
}

func New(client API, sess *session.Session, obs mutation.Observer) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		api:      client,
		sess:     sess,
		people:   sess.People(),
		exec:     mutation.New[api.FollowState](obs),
		followed: make(map[string]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Close discards every response that arrives afterwards.
func (s *Store) Close() { s.cancel() }

func (s *Store) current(id string) api.FollowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.followed[id]
	p, _ := s.people.Get(id)
	return api.FollowState{Following: ok, FollowerCount: p.FollowerCount}
}

// ToggleFollow flips membership of id in the followed set and the person's
// follower count at once, then settles on the server's echo.
func (s *Store) ToggleFollow(ctx context.Context, id string) (api.FollowState, error) {
	cur := s.current(id)
	next := api.FollowState{Following: !cur.Following, FollowerCount: cur.FollowerCount + 1}
	if cur.Following {
		next.FollowerCount = max(cur.FollowerCount-1, 0)
	}

	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()

	st, err := s.exec.Execute(ctx, mutation.Mutation[api.FollowState]{
		Key:        mutation.Key{Entity: id, Kind: kindFollow},
		Current:    cur,
		Optimistic: next,
		Apply:      func(v api.FollowState) { s.apply(id, v) },
		Remote: func(ctx context.Context) (api.FollowState, error) {
			return s.api.ToggleFollow(ctx, id)
		},
		OnSuccess: func(api.FollowState) { s.reconcile(id) },
		OnFailure: func(err error) {
			log.Printf("[follow] toggle %s failed: %v", id, err)
			s.reconcile(id)
		},
	})
	if err != nil {
		return api.FollowState{}, fmt.Errorf("toggle follow %s: %w", id, err)
	}
	return st, nil
}

func (s *Store) apply(id string, v api.FollowState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.Following {
		s.followed[id] = struct{}{}
	} else {
		delete(s.followed, id)
	}
	s.people.SetFollow(id, v.Following, v.FollowerCount)
}

// reconcile lines the partitions up with whatever membership is shown for id
// once a toggle settles either way.
func (s *Store) reconcile(id string) { s.OnFollowChanged(id, s.IsFollowing(id)) }

// OnFollowChanged moves id between the recommended and following lists. A
// person in neither list is left alone.
func (s *Store) OnFollowChanged(id string, nowFollowing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nowFollowing {
		var moved bool
		s.recommended, moved = without(s.recommended, id)
		if moved && !slices.Contains(s.following, id) {
			s.following = append([]string{id}, s.following...)
		}
		return
	}
	var moved bool
	s.following, moved = without(s.following, id)
	if moved && !slices.Contains(s.recommended, id) {
		s.recommended = append([]string{id}, s.recommended...)
	}
}

func without(ids []string, id string) ([]string, bool) {
	i := slices.Index(ids, id)
	if i < 0 {
		return ids, false
	}
	return slices.Delete(slices.Clone(ids), i, i+1), true
}

func (s *Store) LoadRecommended(ctx context.Context) ([]api.Person, error) {
	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	list, err := s.api.Recommended(ctx)
	if err := mutation.Settle(ctx, err); err != nil {
		return nil, fmt.Errorf("load recommended: %w", err)
	}
	s.people.Put(list...)

	s.mu.Lock()
	s.recommended = s.recommended[:0:0]
	for _, p := range list {
		_, followed := s.followed[p.ID]
		if followed || slices.Contains(s.following, p.ID) || slices.Contains(s.recommended, p.ID) {
			continue
		}
		s.recommended = append(s.recommended, p.ID)
	}
	s.mu.Unlock()
	return s.Recommended(), nil
}

func (s *Store) LoadFollowers(ctx context.Context, personID string) ([]api.Person, error) {
	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	list, err := s.api.Followers(ctx, personID)
	if err := mutation.Settle(ctx, err); err != nil {
		return nil, fmt.Errorf("load followers of %s: %w", personID, err)
	}
	s.people.Put(list...)
	if personID != s.sess.ViewerID() {
		return s.people.Lookup(ids(list)), nil
	}

	s.mu.Lock()
	s.followers = ids(list)
	s.mu.Unlock()
	return s.Followers(), nil
}

// LoadFollowing returns whom personID follows. Only the viewer's own list
// replaces the following partition and marks its entries followed; another
// person's list leaves the viewer's partitions alone.
func (s *Store) LoadFollowing(ctx context.Context, personID string) ([]api.Person, error) {
	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	list, err := s.api.Following(ctx, personID)
	if err := mutation.Settle(ctx, err); err != nil {
		return nil, fmt.Errorf("load following of %s: %w", personID, err)
	}
	s.people.Put(list...)
	if personID != s.sess.ViewerID() {
		return s.people.Lookup(ids(list)), nil
	}

	s.mu.Lock()
	s.following = ids(list)
	for _, id := range s.following {
		s.recommended, _ = without(s.recommended, id)
		s.followed[id] = struct{}{}
		s.people.SetFollowed(id, true)
	}
	s.mu.Unlock()
	return s.Following(), nil
}

// LoadFollowingIDs seeds the followed set from the server.
func (s *Store) LoadFollowingIDs(ctx context.Context) ([]string, error) {
	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	list, err := s.api.FollowingIDs(ctx)
	if err := mutation.Settle(ctx, err); err != nil {
		return nil, fmt.Errorf("load following ids: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.followed = make(map[string]struct{}, len(list))
	for _, id := range list {
		s.followed[id] = struct{}{}
		s.recommended, _ = without(s.recommended, id)
		s.people.SetFollowed(id, true)
	}
	return list, nil
}

func (s *Store) LoadFollowStatus(ctx context.Context, personID string) (bool, error) {
	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	following, err := s.api.FollowStatus(ctx, personID)
	if err := mutation.Settle(ctx, err); err != nil {
		return false, fmt.Errorf("load follow status %s: %w", personID, err)
	}
	if s.exec.Pending(mutation.Key{Entity: personID, Kind: kindFollow}) > 0 {
		return s.IsFollowing(personID), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if following {
		s.followed[personID] = struct{}{}
	} else {
		delete(s.followed, personID)
	}
	s.people.SetFollowed(personID, following)
	return following, nil
}

// LoadFollowStats refreshes the counts shown for personID.
func (s *Store) LoadFollowStats(ctx context.Context, personID string) (api.FollowStats, error) {
	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	stats, err := s.api.FollowStats(ctx, personID)
	if err := mutation.Settle(ctx, err); err != nil {
		return api.FollowStats{}, fmt.Errorf("load follow stats %s: %w", personID, err)
	}
	s.mu.Lock()
	s.people.SetStats(personID, stats)
	s.mu.Unlock()
	return stats, nil
}

func (s *Store) LoadProfile(ctx context.Context, username string) (api.Person, error) {
	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	p, err := s.api.Profile(ctx, username)
	if err := mutation.Settle(ctx, err); err != nil {
		return api.Person{}, fmt.Errorf("load profile %s: %w", username, err)
	}
	s.people.Put(p)

	s.mu.Lock()
	s.people.SetStats(p.ID, api.FollowStats{FollowerCount: p.FollowerCount, FollowingCount: p.FollowingCount})
	if p.IsFollowed {
		s.followed[p.ID] = struct{}{}
		s.people.SetFollowed(p.ID, true)
	}
	s.mu.Unlock()

	out, _ := s.people.Get(p.ID)
	return out, nil
}

func (s *Store) IsFollowing(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.followed[id]
	return ok
}

func (s *Store) Recommended() []api.Person { return s.view(func() []string { return s.recommended }) }
func (s *Store) Followers() []api.Person   { return s.view(func() []string { return s.followers }) }
func (s *Store) Following() []api.Person   { return s.view(func() []string { return s.following }) }

func (s *Store) view(list func() []string) []api.Person {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.people.Lookup(list())
}

func ids(list []api.Person) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		if !slices.Contains(out, p.ID) {
			out = append(out, p.ID)
		}
	}
	return out
}
