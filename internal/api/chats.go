package api

import (
	"context"
	"net/http"

	"chatter-client/internal/shared/httpx"
)

func (c *Client) GetOrCreateConversation(ctx context.Context, targetUserID string) (Conversation, error) {
	r, err := jsonRequest(http.MethodPost, "/api/chats/conversations", map[string]string{"target_user_id": targetUserID})
	if err != nil {
		return Conversation{}, err
	}
	var out envelope[Conversation]
	if err := c.do(ctx, r, &out); err != nil {
		return Conversation{}, err
	}
	if out.Data.OtherUserID == "" {
		out.Data.OtherUserID = targetUserID
	}
	return valid(out.Data)
}

func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var out envelope[[]Conversation]
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/chats/conversations"}, &out); err != nil {
		return nil, err
	}
	return validList(out.Data)
}

func (c *Client) ListMessages(ctx context.Context, conversationID string, page, limit int) ([]Message, error) {
	var out envelope[[]Message]
	r := request{
		method: http.MethodGet,
		path:   "/api/chats/conversations/" + seg(conversationID) + "/messages",
		query:  pageQuery(page, limit),
	}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return validList(out.Data)
}

// SendMessage posts multipart form data, the only encoding the endpoint
// accepts for attachments; text-only messages use the same form.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string, media *Media) (Message, error) {
	var files []httpx.File
	if media != nil {
		files = append(files, httpx.File{Field: "media", Name: media.Name, Body: media.Body})
	}
	body, ct, err := httpx.MultipartBody(map[string]string{"content": content}, files...)
	if err != nil {
		return Message{}, err
	}
	var out envelope[Message]
	r := request{
		method:      http.MethodPost,
		path:        "/api/chats/conversations/" + seg(conversationID) + "/messages",
		body:        body,
		contentType: ct,
	}
	if err := c.do(ctx, r, &out); err != nil {
		return Message{}, err
	}
	if out.Data.ConversationID == "" {
		out.Data.ConversationID = conversationID
	}
	return valid(out.Data)
}
