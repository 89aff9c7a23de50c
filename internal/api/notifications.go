package api

import (
	"context"
	"net/http"
)

func (c *Client) ListNotifications(ctx context.Context) ([]Notification, error) {
	var out envelope[[]Notification]
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/notifications"}, &out); err != nil {
		return nil, err
	}
	return validList(out.Data)
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/notifications/unread-count"}, &out); err != nil {
		return 0, err
	}
	if out.Count < 0 {
		out.Count = 0
	}
	return out.Count, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodPatch, path: "/api/notifications/" + seg(id) + "/read"}, nil)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodPatch, path: "/api/notifications/read-all"}, nil)
}
