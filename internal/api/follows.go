package api

import (
	"context"
	"net/http"

	"chatter-client/internal/shared/httpx"
)

func (c *Client) ToggleFollow(ctx context.Context, userID string) (FollowState, error) {
	var out FollowState
	if err := c.do(ctx, request{method: http.MethodPatch, path: "/api/follows/" + seg(userID) + "/toggle"}, &out); err != nil {
		return FollowState{}, err
	}
	return valid(out)
}

func (c *Client) FollowStatus(ctx context.Context, userID string) (bool, error) {
	var out struct {
		Following bool `json:"following"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/follows/" + seg(userID) + "/status"}, &out); err != nil {
		return false, err
	}
	return out.Following, nil
}

func (c *Client) Followers(ctx context.Context, userID string) ([]Person, error) {
	return c.people(ctx, "/api/follows/"+seg(userID)+"/followers")
}

func (c *Client) Following(ctx context.Context, userID string) ([]Person, error) {
	return c.people(ctx, "/api/follows/"+seg(userID)+"/following")
}

func (c *Client) Recommended(ctx context.Context) ([]Person, error) {
	return c.people(ctx, "/api/follows/recommended")
}

func (c *Client) people(ctx context.Context, path string) ([]Person, error) {
	var out envelope[[]Person]
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &out); err != nil {
		return nil, err
	}
	return validList(out.Data)
}

func (c *Client) FollowStats(ctx context.Context, userID string) (FollowStats, error) {
	var out FollowStats
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/follows/stats/" + seg(userID)}, &out); err != nil {
		return FollowStats{}, err
	}
	return valid(out)
}

func (c *Client) FollowingIDs(ctx context.Context) ([]string, error) {
	var out envelope[[]string]
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/follows/following-ids"}, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) Profile(ctx context.Context, username string) (Person, error) {
	var out struct {
		User Person `json:"user"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/users/" + seg(username)}, &out); err != nil {
		return Person{}, err
	}
	return valid(out.User)
}

func (c *Client) UpdateProfile(ctx context.Context, u ProfileUpdate) (Person, error) {
	var files []httpx.File
	if u.Picture != nil {
		files = append(files, httpx.File{Field: "profile_picture", Name: u.Picture.Name, Body: u.Picture.Body})
	}
	body, ct, err := httpx.MultipartBody(map[string]string{
		"name":     u.Name,
		"username": u.Username,
		"email":    u.Email,
		"password": u.Password,
	}, files...)
	if err != nil {
		return Person{}, err
	}
	var out struct {
		User Person `json:"user"`
	}
	if err := c.do(ctx, request{method: http.MethodPut, path: "/api/users/edit-profile", body: body, contentType: ct}, &out); err != nil {
		return Person{}, err
	}
	return valid(out.User)
}
