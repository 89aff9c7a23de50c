package feed

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatter-client/internal/api"
	"chatter-client/internal/mutation"
)

const tempPrefix = "temp-"

// thread is the comment list of one post and its displayed count.
type thread struct {
	items []api.Comment
	count int
}

func (t *thread) index(id string) int {
	return slices.IndexFunc(t.items, func(c api.Comment) bool { return c.ID == id })
}

func (t *thread) temps() []api.Comment {
	var out []api.Comment
	for _, c := range t.items {
		if strings.HasPrefix(c.ID, tempPrefix) {
			out = append(out, c)
		}
	}
	return out
}

// commentSlot is a comment and its position; a nil Comment means absent and
// a negative Index means the tail.
type commentSlot struct {
	Comment *api.Comment
	Index   int
}

// CreateComment appends a temporary comment and bumps the count, then swaps
// in the server's record. A failure removes it again.
func (s *Store) CreateComment(ctx context.Context, postID, content string) (api.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return api.Comment{}, ErrEmptyComment
	}
	viewer, ok := s.sess.Viewer()
	if !ok {
		return api.Comment{}, ErrLoginRequired
	}
	temp := api.Comment{
		ID:        tempPrefix + uuid.NewString(),
		PostID:    postID,
		UserID:    viewer.ID,
		UserName:  viewer.Name,
		Avatar:    viewer.Avatar,
		Content:   content,
		CreatedAt: time.Now(),
	}

	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	v, err := s.comments.Execute(ctx, mutation.Mutation[commentSlot]{
		Key:        mutation.Key{Entity: temp.ID, Kind: kindCreateComment},
		Current:    commentSlot{Index: -1},
		Optimistic: commentSlot{Comment: &temp, Index: -1},
		Apply:      func(v commentSlot) { s.applyComment(postID, temp.ID, v) },
		Remote: func(ctx context.Context) (commentSlot, error) {
			c, err := s.api.CreateComment(ctx, postID, content)
			if err != nil {
				return commentSlot{}, err
			}
			return commentSlot{Comment: &c, Index: -1}, nil
		},
		OnFailure: func(err error) { log.Printf("[feed] comment on %s failed: %v", postID, err) },
	})
	if err != nil {
		return api.Comment{}, fmt.Errorf("create comment on %s: %w", postID, err)
	}
	return *v.Comment, nil
}

// DeleteComment removes a comment and decrements the count; a failure puts
// it back at its old position.
func (s *Store) DeleteComment(ctx context.Context, postID, commentID string) error {
	s.mu.Lock()
	t := s.threadLocked(postID)
	i := t.index(commentID)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("comment %s: %w", commentID, ErrNotFound)
	}
	c := t.items[i]
	s.mu.Unlock()

	gone := commentSlot{Index: i}
	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	_, err := s.comments.Execute(ctx, mutation.Mutation[commentSlot]{
		Key:        mutation.Key{Entity: commentID, Kind: kindDeleteComment},
		Current:    commentSlot{Comment: &c, Index: i},
		Optimistic: gone,
		Apply:      func(v commentSlot) { s.applyComment(postID, commentID, v) },
		Remote: func(ctx context.Context) (commentSlot, error) {
			return gone, s.api.DeleteComment(ctx, postID, commentID)
		},
		OnFailure: func(err error) { log.Printf("[feed] delete comment %s failed: %v", commentID, err) },
	})
	if err != nil {
		return fmt.Errorf("delete comment %s: %w", commentID, err)
	}
	return nil
}

// applyComment moves the thread to v. The count follows presence: it only
// changes when a comment actually appears or disappears.
func (s *Store) applyComment(postID, id string, v commentSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.threadLocked(postID)
	i := t.index(id)
	if i < 0 && v.Comment != nil {
		i = t.index(v.Comment.ID)
	}
	switch {
	case v.Comment == nil && i >= 0:
		t.items = slices.Delete(t.items, i, i+1)
		t.count = max(t.count-1, 0)
	case v.Comment != nil && i >= 0:
		// A refresh may already hold the server's copy; drop the temporary
		// instead of listing the comment twice.
		if j := t.index(v.Comment.ID); j >= 0 && j != i {
			t.items = slices.Delete(t.items, i, i+1)
			return
		}
		t.items[i] = *v.Comment
	case v.Comment != nil:
		at := v.Index
		if at < 0 || at > len(t.items) {
			at = len(t.items)
		}
		t.items = slices.Insert(t.items, at, *v.Comment)
		t.count++
	}
}

// LoadComments replaces a post's comments with the server list, keeping
// comments still waiting for confirmation. The list may be a partial page,
// so the count is left to the server figure and explicit deltas; it is only
// raised when the list proves more comments exist.
func (s *Store) LoadComments(ctx context.Context, postID string) ([]api.Comment, error) {
	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	list, err := s.api.ListComments(ctx, postID)
	if err := mutation.Settle(ctx, err); err != nil {
		return nil, fmt.Errorf("load comments of %s: %w", postID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.threadLocked(postID)
	t.items = append(slices.Clone(list), t.temps()...)
	t.count = max(t.count, len(list))
	return slices.Clone(t.items), nil
}

func (s *Store) LoadCommentCount(ctx context.Context, postID string) (int, error) {
	ctx, stop := mutation.Within(ctx, s.ctx)
	defer stop()
	n, err := s.api.CommentCount(ctx, postID)
	if err := mutation.Settle(ctx, err); err != nil {
		return 0, fmt.Errorf("load comment count of %s: %w", postID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.threadLocked(postID)
	t.count = n + len(t.temps())
	return t.count, nil
}

func (s *Store) Comments(postID string) []api.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.threads[postID]; ok {
		return slices.Clone(t.items)
	}
	return nil
}

func (s *Store) CommentCount(postID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.threads[postID]; ok {
		return t.count
	}
	if i := s.indexLocked(postID); i >= 0 {
		return s.posts[i].CommentCount
	}
	return 0
}

func (s *Store) threadLocked(postID string) *thread {
	t, ok := s.threads[postID]
	if !ok {
		t = &thread{}
		if i := s.indexLocked(postID); i >= 0 {
			t.count = s.posts[i].CommentCount
		}
		s.threads[postID] = t
	}
	return t
}
