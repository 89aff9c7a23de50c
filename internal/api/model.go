package api

import (
	"fmt"
	"io"
	"time"
)

type Person struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Username       string `json:"username"`
	Avatar         string `json:"profile_picture,omitempty"`
	FollowerCount  int    `json:"followerCount,omitempty"`
	FollowingCount int    `json:"followingCount,omitempty"`
	IsFollowed     bool   `json:"isFollowed,omitempty"`
}

func (p *Person) validate() error {
	if p.ID == "" {
		return fmt.Errorf("person: missing id")
	}
	return nil
}

type Post struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	UserName     string    `json:"user_name,omitempty"`
	Avatar       string    `json:"profile_picture,omitempty"`
	Content      string    `json:"content"`
	MediaURL     string    `json:"media_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LikeCount    int       `json:"likes"`
	IsLiked      bool      `json:"isLiked"`
	CommentCount int       `json:"comments_count"`
}

func (p *Post) validate() error {
	if p.ID == "" {
		return fmt.Errorf("post: missing id")
	}
	if p.LikeCount < 0 || p.CommentCount < 0 {
		return fmt.Errorf("post %s: negative counter", p.ID)
	}
	return nil
}

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	Avatar    string    `json:"profile_picture,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Comment) validate() error {
	if c.ID == "" {
		return fmt.Errorf("comment: missing id")
	}
	return nil
}

type Conversation struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversation_id,omitempty"`
	OtherUserID     string    `json:"other_user_id"`
	OtherUserName   string    `json:"other_user_name,omitempty"`
	OtherUserAvatar string    `json:"other_user_avatar,omitempty"`
	LastMessage     string    `json:"last_message,omitempty"`
	LastActivity    time.Time `json:"last_message_at"`
}

// validate also folds the list endpoint's conversation_id into ID.
func (c *Conversation) validate() error {
	if c.ID == "" {
		c.ID = c.ConversationID
	}
	if c.ID == "" {
		return fmt.Errorf("conversation: missing id")
	}
	return nil
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name,omitempty"`
	SenderAvatar   string    `json:"sender_avatar,omitempty"`
	Content        string    `json:"content,omitempty"`
	MediaURL       string    `json:"media_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`

	// Pending marks a locally created message the server has not confirmed.
	Pending bool `json:"-"`
}

func (m *Message) validate() error {
	if m.ID == "" {
		return fmt.Errorf("message: missing id")
	}
	if m.Content == "" && m.MediaURL == "" {
		return fmt.Errorf("message %s: no content or media", m.ID)
	}
	return nil
}

type NotificationType string

const (
	NotifyLike    NotificationType = "like"
	NotifyComment NotificationType = "comment"
	NotifyFollow  NotificationType = "follow"
	NotifyMessage NotificationType = "message"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotifyLike, NotifyComment, NotifyFollow, NotifyMessage:
		return true
	}
	return false
}

type Notification struct {
	ID            string           `json:"id"`
	Type          NotificationType `json:"type"`
	ActorID       string           `json:"actor_id,omitempty"`
	ActorName     string           `json:"actor_name,omitempty"`
	ActorUsername string           `json:"actor_username,omitempty"`
	ActorAvatar   string           `json:"actor_avatar,omitempty"`
	EntityID      string           `json:"entity_id,omitempty"`
	Read          bool             `json:"is_read"`
	CreatedAt     time.Time        `json:"created_at"`
}

func (n *Notification) validate() error {
	if n.ID == "" {
		return fmt.Errorf("notification: missing id")
	}
	if !n.Type.Valid() {
		return fmt.Errorf("notification %s: unknown type %q", n.ID, n.Type)
	}
	return nil
}

// LikeState is the canonical echo of the like endpoints.
type LikeState struct {
	IsLiked   bool `json:"isLiked"`
	LikeCount int  `json:"likeCount"`
}

func (s *LikeState) validate() error {
	if s.LikeCount < 0 {
		return fmt.Errorf("like state: negative count")
	}
	return nil
}

// FollowState is the canonical echo of the follow toggle.
type FollowState struct {
	Following     bool `json:"following"`
	FollowerCount int  `json:"followerCount"`
}

func (s *FollowState) validate() error {
	if s.FollowerCount < 0 {
		return fmt.Errorf("follow state: negative count")
	}
	return nil
}

type FollowStats struct {
	FollowerCount  int `json:"followerCount"`
	FollowingCount int `json:"followingCount"`
}

func (s *FollowStats) validate() error {
	if s.FollowerCount < 0 || s.FollowingCount < 0 {
		return fmt.Errorf("follow stats: negative count")
	}
	return nil
}

// Media is an attachment sent as a multipart file part.
type Media struct {
	Name string
	Body io.Reader
}

type ProfileUpdate struct {
	Name     string
	Username string
	Email    string
	Password string
	Picture  *Media
}
