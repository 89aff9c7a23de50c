package notification

import "chatter-client/internal/api"

type TargetKind string

const (
	TargetPost    TargetKind = "post"
	TargetProfile TargetKind = "profile"
)

// Target is where activating a notification leads: the post for likes and
// comments, the actor's profile for follows and messages.
func Target(n api.Notification) (TargetKind, string) {
	switch n.Type {
	case api.NotifyLike, api.NotifyComment:
		return TargetPost, n.EntityID
	default:
		return TargetProfile, n.ActorUsername
	}
}
