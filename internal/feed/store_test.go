package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatter-client/internal/api"
	"chatter-client/internal/session"
	"chatter-client/internal/session/sessiontest"
)

type fakeAPI struct {
	pages         map[int][]api.Post
	calls         int
	toggleLike    func(ctx context.Context, postID string) (api.LikeState, error)
	deletePost    func(ctx context.Context, postID string) error
	createComment func(ctx context.Context, postID, content string) (api.Comment, error)
	deleteComment func(ctx context.Context, postID, commentID string) error
	comments      []api.Comment
	commentCount  int
}

func (f *fakeAPI) ListPosts(_ context.Context, page, _ int) ([]api.Post, error) {
	f.calls++
	return f.pages[page], nil
}

func (f *fakeAPI) ListUserPosts(_ context.Context, userID string, page, _ int) ([]api.Post, error) {
	f.calls++
	var out []api.Post
	for _, p := range f.pages[page] {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeAPI) CreatePost(_ context.Context, content string, _ *api.Media) (api.Post, error) {
	f.calls++
	return api.Post{ID: "new", Content: content, CreatedAt: time.Now()}, nil
}

func (f *fakeAPI) DeletePost(ctx context.Context, postID string) error {
	f.calls++
	return f.deletePost(ctx, postID)
}

func (f *fakeAPI) ToggleLike(ctx context.Context, postID string) (api.LikeState, error) {
	f.calls++
	return f.toggleLike(ctx, postID)
}

func (f *fakeAPI) LikeStatus(context.Context, string) (api.LikeState, error) {
	f.calls++
	return api.LikeState{IsLiked: true, LikeCount: 40}, nil
}

func (f *fakeAPI) ListComments(context.Context, string) ([]api.Comment, error) {
	f.calls++
	return f.comments, nil
}

func (f *fakeAPI) CommentCount(context.Context, string) (int, error) {
	f.calls++
	return f.commentCount, nil
}

func (f *fakeAPI) CreateComment(ctx context.Context, postID, content string) (api.Comment, error) {
	f.calls++
	return f.createComment(ctx, postID, content)
}

func (f *fakeAPI) DeleteComment(ctx context.Context, postID, commentID string) error {
	f.calls++
	return f.deleteComment(ctx, postID, commentID)
}

func fakePosts(n int) []api.Post {
	out := make([]api.Post, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, api.Post{
			ID:           fmt.Sprintf("p%d", i+1),
			UserID:       gofakeit.UUID(),
			UserName:     gofakeit.Name(),
			Content:      gofakeit.Sentence(8),
			CreatedAt:    gofakeit.Date(),
			LikeCount:    gofakeit.Number(0, 20),
			CommentCount: 2,
		})
	}
	return out
}

func fakeComments(postID string, n int) []api.Comment {
	out := make([]api.Comment, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, api.Comment{
			ID:       fmt.Sprintf("c%d", i+1),
			PostID:   postID,
			UserID:   gofakeit.UUID(),
			UserName: gofakeit.Name(),
			Content:  gofakeit.Sentence(5),
		})
	}
	return out
}

func loggedIn(t *testing.T) *session.Session {
	return sessiontest.LoggedIn(t, api.Person{ID: "me", Name: gofakeit.Name(), Avatar: gofakeit.URL()})
}

func loaded(t *testing.T, f *fakeAPI, sess *session.Session) *Store {
	t.Helper()
	s := New(f, sess, nil)
	t.Cleanup(s.Close)
	_, err := s.FetchFeed(context.Background(), 1, 20)
	require.NoError(t, err)
	return s
}

func ids(posts []api.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

func TestFetchFeedPaging(t *testing.T) {
	all := fakePosts(5)
	f := &fakeAPI{pages: map[int][]api.Post{1: all[:3], 2: all[2:]}}
	s := loaded(t, f, session.New(nil))
	ctx := context.Background()

	got, err := s.FetchFeed(ctx, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p3", "p4", "p5"}, ids(got))

	f.pages[1] = all[4:]
	got, err = s.FetchFeed(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"p5"}, ids(got))
}

func TestFetchUserPosts(t *testing.T) {
	all := fakePosts(4)
	all[1].UserID = "author"
	all[3].UserID = "author"
	f := &fakeAPI{pages: map[int][]api.Post{1: all}}
	s := New(f, session.New(nil), nil)
	defer s.Close()

	got, err := s.FetchUserPosts(context.Background(), "author", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p4"}, ids(got))
}

func TestToggleLikeAppliesCanonicalCount(t *testing.T) {
	posts := fakePosts(1)
	posts[0].IsLiked = false
	posts[0].LikeCount = 10
	var during api.Post
	f := &fakeAPI{pages: map[int][]api.Post{1: posts}}
	s := loaded(t, f, loggedIn(t))
	f.toggleLike = func(context.Context, string) (api.LikeState, error) {
		during, _ = s.Post("p1")
		return api.LikeState{IsLiked: true, LikeCount: 12}, nil
	}

	st, err := s.ToggleLike(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 12, st.LikeCount)
	assert.True(t, during.IsLiked)
	assert.Equal(t, 11, during.LikeCount)

	p, _ := s.Post("p1")
	assert.True(t, p.IsLiked)
	assert.Equal(t, 12, p.LikeCount)
}

func TestToggleLikeFailureReverts(t *testing.T) {
	posts := fakePosts(1)
	posts[0].IsLiked = true
	posts[0].LikeCount = 5
	f := &fakeAPI{
		pages: map[int][]api.Post{1: posts},
		toggleLike: func(context.Context, string) (api.LikeState, error) {
			return api.LikeState{}, errors.New("offline")
		},
	}
	s := loaded(t, f, loggedIn(t))

	_, err := s.ToggleLike(context.Background(), "p1")
	require.Error(t, err)
	p, _ := s.Post("p1")
	assert.True(t, p.IsLiked)
	assert.Equal(t, 5, p.LikeCount)
}

func TestToggleLikeRequiresLogin(t *testing.T) {
	f := &fakeAPI{pages: map[int][]api.Post{1: fakePosts(1)}}
	s := loaded(t, f, session.New(nil))
	before, _ := s.Post("p1")
	calls := f.calls

	_, err := s.ToggleLike(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrLoginRequired)
	after, _ := s.Post("p1")
	assert.Equal(t, before, after)
	assert.Equal(t, calls, f.calls)
}

func TestLoadLikeStatus(t *testing.T) {
	f := &fakeAPI{pages: map[int][]api.Post{1: fakePosts(1)}}
	s := loaded(t, f, session.New(nil))

	_, err := s.LoadLikeStatus(context.Background(), "p1")
	require.NoError(t, err)
	p, _ := s.Post("p1")
	assert.True(t, p.IsLiked)
	assert.Equal(t, 40, p.LikeCount)
}

func TestDeletePostFailureRestoresIndex(t *testing.T) {
	f := &fakeAPI{pages: map[int][]api.Post{1: fakePosts(5)}}
	s := loaded(t, f, loggedIn(t))
	var during []string
	f.deletePost = func(context.Context, string) error {
		during = ids(s.Posts())
		return &api.Error{Status: 403, Message: "not your post"}
	}

	err := s.DeletePost(context.Background(), "p3")
	require.Error(t, err)
	assert.Equal(t, "not your post", api.ErrorText(err, ""))
	assert.Equal(t, []string{"p1", "p2", "p4", "p5"}, during)
	assert.Equal(t, []string{"p1", "p2", "p3", "p4", "p5"}, ids(s.Posts()))
}

func TestDeletePostSuccess(t *testing.T) {
	f := &fakeAPI{
		pages:      map[int][]api.Post{1: fakePosts(3)},
		deletePost: func(context.Context, string) error { return nil },
	}
	s := loaded(t, f, loggedIn(t))

	require.NoError(t, s.DeletePost(context.Background(), "p2"))
	assert.Equal(t, []string{"p1", "p3"}, ids(s.Posts()))
	assert.ErrorIs(t, s.DeletePost(context.Background(), "p2"), ErrNotFound)
}

func TestCreatePostPrepends(t *testing.T) {
	f := &fakeAPI{pages: map[int][]api.Post{1: fakePosts(2)}}
	s := loaded(t, f, loggedIn(t))

	p, err := s.CreatePost(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "new", p.ID)
	assert.Equal(t, []string{"new", "p1", "p2"}, ids(s.Posts()))
}

func TestCreateCommentRejectsEmpty(t *testing.T) {
	f := &fakeAPI{pages: map[int][]api.Post{1: fakePosts(1)}}
	s := loaded(t, f, loggedIn(t))
	calls := f.calls

	_, err := s.CreateComment(context.Background(), "p1", "   ")
	assert.ErrorIs(t, err, ErrEmptyComment)
	assert.Equal(t, calls, f.calls)
	assert.Equal(t, 2, s.CommentCount("p1"))
}

func TestCreateCommentSwapsTemporary(t *testing.T) {
	f := &fakeAPI{
		pages:    map[int][]api.Post{1: fakePosts(1)},
		comments: fakeComments("p1", 2),
	}
	s := loaded(t, f, loggedIn(t))
	ctx := context.Background()
	_, err := s.LoadComments(ctx, "p1")
	require.NoError(t, err)

	var during []api.Comment
	var duringCount int
	f.createComment = func(_ context.Context, postID, content string) (api.Comment, error) {
		during = s.Comments(postID)
		duringCount = s.CommentCount(postID)
		return api.Comment{ID: "c99", PostID: postID, UserID: "me", Content: content}, nil
	}

	c, err := s.CreateComment(ctx, "p1", " nice ")
	require.NoError(t, err)
	assert.Equal(t, "c99", c.ID)

	require.Len(t, during, 3)
	assert.True(t, strings.HasPrefix(during[2].ID, tempPrefix))
	assert.Equal(t, "nice", during[2].Content)
	assert.Equal(t, 3, duringCount)

	got := s.Comments("p1")
	require.Len(t, got, 3)
	assert.Equal(t, "c99", got[2].ID)
	assert.Equal(t, 3, s.CommentCount("p1"))
	p, _ := s.Post("p1")
	assert.Equal(t, 3, p.CommentCount)
}

func TestCreateCommentFailureRemovesTemporary(t *testing.T) {
	f := &fakeAPI{
		pages:    map[int][]api.Post{1: fakePosts(1)},
		comments: fakeComments("p1", 2),
		createComment: func(context.Context, string, string) (api.Comment, error) {
			return api.Comment{}, &api.Error{Status: 500}
		},
	}
	s := loaded(t, f, loggedIn(t))
	ctx := context.Background()
	_, err := s.LoadComments(ctx, "p1")
	require.NoError(t, err)

	_, err = s.CreateComment(ctx, "p1", "nice")
	require.Error(t, err)
	assert.Equal(t, []string{"c1", "c2"}, commentIDs(s.Comments("p1")))
	assert.Equal(t, 2, s.CommentCount("p1"))
}

func TestDeleteCommentFailureRestores(t *testing.T) {
	f := &fakeAPI{
		pages:    map[int][]api.Post{1: fakePosts(1)},
		comments: fakeComments("p1", 3),
		deleteComment: func(context.Context, string, string) error {
			return errors.New("offline")
		},
	}
	f.pages[1][0].CommentCount = 3
	s := loaded(t, f, loggedIn(t))
	ctx := context.Background()
	_, err := s.LoadComments(ctx, "p1")
	require.NoError(t, err)

	require.Error(t, s.DeleteComment(ctx, "p1", "c2"))
	assert.Equal(t, []string{"c1", "c2", "c3"}, commentIDs(s.Comments("p1")))
	assert.Equal(t, 3, s.CommentCount("p1"))

	f.deleteComment = func(context.Context, string, string) error { return nil }
	require.NoError(t, s.DeleteComment(ctx, "p1", "c2"))
	assert.Equal(t, []string{"c1", "c3"}, commentIDs(s.Comments("p1")))
	assert.Equal(t, 2, s.CommentCount("p1"))
}

func TestLoadCommentCount(t *testing.T) {
	f := &fakeAPI{pages: map[int][]api.Post{1: fakePosts(1)}, commentCount: 7}
	s := loaded(t, f, session.New(nil))

	n, err := s.LoadCommentCount(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	p, _ := s.Post("p1")
	assert.Equal(t, 7, p.CommentCount)
}

func commentIDs(list []api.Comment) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.ID)
	}
	return out
}

func TestLoadCommentsKeepsServerCount(t *testing.T) {
	f := &fakeAPI{
		pages:    map[int][]api.Post{1: fakePosts(1)},
		comments: fakeComments("p1", 10),
	}
	f.pages[1][0].CommentCount = 40
	s := loaded(t, f, session.New(nil))

	got, err := s.LoadComments(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, got, 10)
	assert.Equal(t, 40, s.CommentCount("p1"))
	p, _ := s.Post("p1")
	assert.Equal(t, 40, p.CommentCount)
}

func TestCreateCommentAfterRefreshListsOnce(t *testing.T) {
	f := &fakeAPI{
		pages:    map[int][]api.Post{1: fakePosts(1)},
		comments: fakeComments("p1", 2),
	}
	s := loaded(t, f, loggedIn(t))
	ctx := context.Background()
	_, err := s.LoadComments(ctx, "p1")
	require.NoError(t, err)

	c99 := api.Comment{ID: "c99", PostID: "p1", UserID: "me", Content: "nice"}
	f.createComment = func(ctx context.Context, postID, _ string) (api.Comment, error) {
		f.comments = append(fakeComments("p1", 2), c99)
		_, err := s.LoadComments(ctx, postID)
		require.NoError(t, err)
		return c99, nil
	}

	_, err = s.CreateComment(ctx, "p1", "nice")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2", "c99"}, commentIDs(s.Comments("p1")))
	assert.Equal(t, 3, s.CommentCount("p1"))
}
