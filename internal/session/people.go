package session

import (
	"sync"

	"chatter-client/internal/api"
)

// People is the process-wide Person cache. Stores keep person ids and look
// records up here so every rendered copy of a person shows the same state.
//
// Put only touches identity fields. Follow-relationship fields are written
// through SetFollow, SetFollowed and SetStats, which only the follow graph calls.
type People struct {
	mu   sync.RWMutex
	byID map[string]*api.Person
}

func newPeople() *People {
	return &People{byID: make(map[string]*api.Person)}
}

func (p *People) Put(people ...api.Person) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, in := range people {
		if in.ID == "" {
			continue
		}
		cur, ok := p.byID[in.ID]
		if !ok {
			cp := in
			p.byID[in.ID] = &cp
			continue
		}
		if in.Name != "" {
			cur.Name = in.Name
		}
		if in.Username != "" {
			cur.Username = in.Username
		}
		if in.Avatar != "" {
			cur.Avatar = in.Avatar
		}
	}
}

func (p *People) Get(id string) (api.Person, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.byID[id]; ok {
		return *v, true
	}
	return api.Person{}, false
}

// Lookup returns the cached records for ids, skipping unknown ones.
func (p *People) Lookup(ids []string) []api.Person {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]api.Person, 0, len(ids))
	for _, id := range ids {
		if v, ok := p.byID[id]; ok {
			out = append(out, *v)
		}
	}
	return out
}

func (p *People) SetFollow(id string, following bool, followerCount int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := p.entry(id)
	v.IsFollowed = following
	v.FollowerCount = followerCount
}

func (p *People) SetFollowed(id string, following bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entry(id).IsFollowed = following
}

func (p *People) SetStats(id string, stats api.FollowStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := p.entry(id)
	v.FollowerCount = stats.FollowerCount
	v.FollowingCount = stats.FollowingCount
}

func (p *People) entry(id string) *api.Person {
	v, ok := p.byID[id]
	if !ok {
		v = &api.Person{ID: id}
		p.byID[id] = v
	}
	return v
}

func (p *People) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byID)
}

func (p *People) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID = make(map[string]*api.Person)
}
