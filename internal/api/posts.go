package api

import (
	"context"
	"net/http"

	"chatter-client/internal/shared/httpx"
)

func (c *Client) ListPosts(ctx context.Context, page, limit int) ([]Post, error) {
	var out envelope[[]Post]
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/posts", query: pageQuery(page, limit)}, &out); err != nil {
		return nil, err
	}
	return validList(out.Data)
}

func (c *Client) ListUserPosts(ctx context.Context, userID string, page, limit int) ([]Post, error) {
	var out envelope[[]Post]
	r := request{method: http.MethodGet, path: "/api/users/" + seg(userID) + "/posts", query: pageQuery(page, limit)}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return validList(out.Data)
}

func (c *Client) CreatePost(ctx context.Context, content string, media *Media) (Post, error) {
	var files []httpx.File
	if media != nil {
		files = append(files, httpx.File{Field: "media", Name: media.Name, Body: media.Body})
	}
	body, ct, err := httpx.MultipartBody(map[string]string{"content": content}, files...)
	if err != nil {
		return Post{}, err
	}
	var out envelope[Post]
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/posts", body: body, contentType: ct}, &out); err != nil {
		return Post{}, err
	}
	return valid(out.Data)
}

func (c *Client) DeletePost(ctx context.Context, postID string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/posts/" + seg(postID)}, nil)
}

func (c *Client) ToggleLike(ctx context.Context, postID string) (LikeState, error) {
	var out LikeState
	if err := c.do(ctx, request{method: http.MethodPatch, path: "/api/posts/" + seg(postID) + "/likes"}, &out); err != nil {
		return LikeState{}, err
	}
	return valid(out)
}

func (c *Client) LikeStatus(ctx context.Context, postID string) (LikeState, error) {
	var out LikeState
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/posts/" + seg(postID) + "/likes"}, &out); err != nil {
		return LikeState{}, err
	}
	return valid(out)
}

func (c *Client) ListComments(ctx context.Context, postID string) ([]Comment, error) {
	var out envelope[[]Comment]
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/comments/" + seg(postID)}, &out); err != nil {
		return nil, err
	}
	return validList(out.Data)
}

func (c *Client) CommentCount(ctx context.Context, postID string) (int, error) {
	var out struct {
		CommentCount int `json:"commentCount"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/comments/" + seg(postID) + "/count"}, &out); err != nil {
		return 0, err
	}
	return out.CommentCount, nil
}

func (c *Client) CreateComment(ctx context.Context, postID, content string) (Comment, error) {
	r, err := jsonRequest(http.MethodPost, "/api/comments/"+seg(postID), map[string]string{"content": content})
	if err != nil {
		return Comment{}, err
	}
	var out struct {
		Comment Comment `json:"comment"`
	}
	if err := c.do(ctx, r, &out); err != nil {
		return Comment{}, err
	}
	if out.Comment.PostID == "" {
		out.Comment.PostID = postID
	}
	return valid(out.Comment)
}

func (c *Client) DeleteComment(ctx context.Context, postID, commentID string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/comments/" + seg(postID) + "/" + seg(commentID)}, nil)
}
