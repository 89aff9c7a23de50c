package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"

	"chatter-client/internal/api"
	"chatter-client/internal/mutation"
	"chatter-client/internal/session"
)

var (
	ErrLoginRequired = errors.New("feed: login required")
	ErrNotFound      = errors.New("feed: post not found")
	ErrEmptyComment  = errors.New("feed: comment is empty")
)

type API interface {
	ListPosts(ctx context.Context, page, limit int) ([]api.Post, error)
	ListUserPosts(ctx context.Context, userID string, page, limit int) ([]api.Post, error)
	CreatePost(ctx context.Context, content string, media *api.Media) (api.Post, error)
	DeletePost(ctx context.Context, postID string) error
	ToggleLike(ctx context.Context, postID string) (api.LikeState, error)
	LikeStatus(ctx context.Context, postID string) (api.LikeState, error)
	ListComments(ctx context.Context, postID string) ([]api.Comment, error)
	CommentCount(ctx context.Context, postID string) (int, error)
	CreateComment(ctx context.Context, postID, content string) (api.Comment, error)
	DeleteComment(ctx context.Context, postID, commentID string) error
}

const (
	kindLike          = "like"
	kindDeletePost    = "post.delete"
	kindCreateComment = "comment.create"
	kindDeleteComment = "comment.delete"
)

// postSlot is a post together with where it sat in the list.
type postSlot struct {
	Post    api.Post
	Index   int
	Present bool
}

// Store is the ordered post list plus the comment threads opened from it.
type Store struct {
	api  API
	sess *session.Session

	likes    *mutation.Executor[api.LikeState]
	deletes  *mutation.Executor[postSlot]
	comments *mutation.Executor[commentSlot]

	mu      sync.Mutex
	posts   []api.Post
	threads map[string]*thread

	ctx    context.Context
	cancel context.CancelFunc
}

func New(client API, sess *session.Session, obs mutation.Observer) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		api:      client,
		sess:     sess,
		likes:    mutation.New[api.LikeState](obs),
		deletes:  mutation.New[postSlot](obs),
		comments: mutation.New[commentSlot](obs),
		threads:  make(map[string]*thread),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *Store) Close() { s.cancel() }

// FetchFeed loads a page of the home feed. Page 1 replaces the list; later
// pages append, skipping posts already shown.
func (s *Store) FetchFeed(ctx context.Context, page, limit int) ([]api.Post, error) {
	return s.fetch(ctx, page, func(ctx context.Context) ([]api.Post, error) {
		return s.api.ListPosts(ctx, page, limit)
	})
}

// FetchUserPosts loads a page of one author's posts with the same merge rule.
func (s *Store) FetchUserPosts(ctx context.Context, userID string, page, limit int) ([]api.Post, error) {
	return s.fetch(ctx, page, func(ctx context.Context) ([]api.Post, error) {
		return s.api.ListUserPosts(ctx, userID, page, limit)
	})
}

func (s *Store) fetch(ctx context.Context, page int, load func(context.Context) ([]api.Post, error)) ([]api.Post, error) {
	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	list, err := load(ctx)
	if err := mutation.Settle(ctx, err); err != nil {
		return nil, fmt.Errorf("fetch posts page %d: %w", page, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if page <= 1 {
		s.posts = s.posts[:0:0]
	}
	for _, p := range list {
		if s.indexLocked(p.ID) >= 0 {
			continue
		}
		s.posts = append(s.posts, p)
		if t, ok := s.threads[p.ID]; ok {
			t.count = p.CommentCount + len(t.temps())
		}
	}
	return s.snapshotLocked(), nil
}

// AddPost puts a post at the top of the list.
func (s *Store) AddPost(p api.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(p.ID); i >= 0 {
		s.posts = slices.Delete(s.posts, i, i+1)
	}
	s.posts = slices.Insert(s.posts, 0, p)
}

// CreatePost publishes a post and adds it once the server accepts it.
func (s *Store) CreatePost(ctx context.Context, content string, media *api.Media) (api.Post, error) {
	if !s.sess.Authenticated() {
		return api.Post{}, ErrLoginRequired
	}
	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	p, err := s.api.CreatePost(ctx, content, media)
	if err := mutation.Settle(ctx, err); err != nil {
		return api.Post{}, fmt.Errorf("create post: %w", err)
	}
	s.AddPost(p)
	return p, nil
}

func (s *Store) ToggleLike(ctx context.Context, postID string) (api.LikeState, error) {
	if !s.sess.Authenticated() {
		return api.LikeState{}, ErrLoginRequired
	}
	p, ok := s.Post(postID)
	if !ok {
		return api.LikeState{}, ErrNotFound
	}
	cur := api.LikeState{IsLiked: p.IsLiked, LikeCount: p.LikeCount}
	next := api.LikeState{IsLiked: !cur.IsLiked, LikeCount: cur.LikeCount + 1}
	if cur.IsLiked {
		next.LikeCount = max(cur.LikeCount-1, 0)
	}

	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	st, err := s.likes.Execute(ctx, mutation.Mutation[api.LikeState]{
		Key:        mutation.Key{Entity: postID, Kind: kindLike},
		Current:    cur,
		Optimistic: next,
		Apply:      func(v api.LikeState) { s.applyLike(postID, v) },
		Remote: func(ctx context.Context) (api.LikeState, error) {
			return s.api.ToggleLike(ctx, postID)
		},
		OnFailure: func(err error) { log.Printf("[feed] like %s failed: %v", postID, err) },
	})
	if err != nil {
		return api.LikeState{}, fmt.Errorf("toggle like %s: %w", postID, err)
	}
	return st, nil
}

func (s *Store) applyLike(postID string, v api.LikeState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(postID); i >= 0 {
		s.posts[i].IsLiked = v.IsLiked
		s.posts[i].LikeCount = v.LikeCount
	}
}

// LoadLikeStatus refreshes a post's like state unless a toggle is in flight.
func (s *Store) LoadLikeStatus(ctx context.Context, postID string) (api.LikeState, error) {
	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	st, err := s.api.LikeStatus(ctx, postID)
	if err := mutation.Settle(ctx, err); err != nil {
		return api.LikeState{}, fmt.Errorf("load like status %s: %w", postID, err)
	}
	if s.likes.Pending(mutation.Key{Entity: postID, Kind: kindLike}) == 0 {
		s.applyLike(postID, st)
	}
	return st, nil
}

// DeletePost removes the post at once and puts it back where it was if the
// server refuses.
func (s *Store) DeletePost(ctx context.Context, postID string) error {
	s.mu.Lock()
	i := s.indexLocked(postID)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	cur := postSlot{Post: s.posts[i], Index: i, Present: true}
	s.mu.Unlock()

	next := cur
	next.Present = false

	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	_, err := s.deletes.Execute(ctx, mutation.Mutation[postSlot]{
		Key:        mutation.Key{Entity: postID, Kind: kindDeletePost},
		Current:    cur,
		Optimistic: next,
		Apply:      s.applyPostSlot,
		Remote: func(ctx context.Context) (postSlot, error) {
			return next, s.api.DeletePost(ctx, postID)
		},
		OnFailure: func(err error) { log.Printf("[feed] delete post %s failed: %v", postID, err) },
	})
	if err != nil {
		return fmt.Errorf("delete post %s: %w", postID, err)
	}
	return nil
}

func (s *Store) applyPostSlot(v postSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(v.Post.ID)
	switch {
	case !v.Present && i >= 0:
		s.posts = slices.Delete(s.posts, i, i+1)
	case v.Present && i < 0:
		s.posts = slices.Insert(s.posts, min(v.Index, len(s.posts)), v.Post)
	}
}

func (s *Store) Posts() []api.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) Post(id string) (api.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return api.Post{}, false
	}
	return s.withCountLocked(s.posts[i]), true
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.posts, func(p api.Post) bool { return p.ID == id })
}

func (s *Store) snapshotLocked() []api.Post {
	out := make([]api.Post, len(s.posts))
	for i, p := range s.posts {
		out[i] = s.withCountLocked(p)
	}
	return out
}

// withCountLocked overlays the comment count of an open thread.
func (s *Store) withCountLocked(p api.Post) api.Post {
	if t, ok := s.threads[p.ID]; ok {
		p.CommentCount = t.count
	}
	return p
}
