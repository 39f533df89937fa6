package models

import "time"

type UserStatus string

const (
	StatusOnline  UserStatus = "online"
	StatusOffline UserStatus = "offline"
	StatusAway    UserStatus = "away"
)

type Profile struct {
	ID        string     `json:"id" dynamodbav:"id"`
	Username  string     `json:"username" dynamodbav:"username"`
	FullName  string     `json:"full_name,omitempty" dynamodbav:"full_name"`
	AvatarURL string     `json:"avatar_url,omitempty" dynamodbav:"avatar_url"`
	Status    UserStatus `json:"status" dynamodbav:"status"`
	LastSeen  time.Time  `json:"last_seen" dynamodbav:"last_seen"`
	CreatedAt time.Time  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" dynamodbav:"updated_at"`
}
