package models

import "time"

type ChatRoom struct {
	ID          string    `json:"id" dynamodbav:"id"`
	Name        string    `json:"name" dynamodbav:"name"`
	Description string    `json:"description,omitempty" dynamodbav:"description"`
	IsPrivate   bool      `json:"is_private" dynamodbav:"is_private"`
	CreatedBy   string    `json:"created_by" dynamodbav:"created_by"`
	CreatedAt   time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

type MemberRole string

const (
	RoleAdmin     MemberRole = "admin"
	RoleModerator MemberRole = "moderator"
	RoleMember    MemberRole = "member"
)

// RoomMember is one membership row. Creating a room inserts the creator as
// admin; leaving a room deletes the row.
type RoomMember struct {
	ID       string     `json:"id" dynamodbav:"id"`
	RoomID   string     `json:"room_id" dynamodbav:"room_id"`
	UserID   string     `json:"user_id" dynamodbav:"user_id"`
	Role     MemberRole `json:"role" dynamodbav:"role"`
	JoinedAt time.Time  `json:"joined_at" dynamodbav:"joined_at"`

	Profile *Profile `json:"profile,omitempty" dynamodbav:"-"`
}
