package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a user document in MongoDB. Only the profile fields used
// for enrichment are mapped.
type User struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name           string             `json:"name" bson:"name"`
	Username       string             `json:"username" bson:"username"`
	ProfilePicture string             `json:"profilePicture" bson:"profile_picture"`
	LastSeen       *time.Time         `json:"lastSeen,omitempty" bson:"last_seen,omitempty"`
}

// UserInfo is the public profile attached to calls, messages and notifications.
type UserInfo struct {
	ID          string `json:"id" bson:"_id"`
	DisplayName string `json:"displayName" bson:"name"`
	Avatar      string `json:"avatar" bson:"profile_picture"`
	Handle      string `json:"handle" bson:"username"`
}

func (u *User) Info() *UserInfo {
	return &UserInfo{
		ID:          u.ID.Hex(),
		DisplayName: u.Name,
		Avatar:      u.ProfilePicture,
		Handle:      u.Username,
	}
}

// UserStatusEvent is broadcast once per online/offline transition.
type UserStatusEvent struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	Status   string     `json:"status"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

type OnlineStatus struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}
