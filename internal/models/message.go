package models

import "time"

type MessageType int

const (
	MessageTypeText MessageType = iota
	MessageTypeImage
	MessageTypeFile
	MessageTypeSystem
)

type Message struct {
	ID        string      `json:"id" dynamodbav:"id"`
	RoomID    string      `json:"room_id" dynamodbav:"room_id"`
	UserID    string      `json:"user_id" dynamodbav:"user_id"`
	Username  string      `json:"username" dynamodbav:"username"`
	Content   string      `json:"content" dynamodbav:"content"`
	Type      MessageType `json:"type" dynamodbav:"type"`
	FileURL   string      `json:"file_url,omitempty" dynamodbav:"file_url"`
	FileName  string      `json:"file_name,omitempty" dynamodbav:"file_name"`
	FileSize  int64       `json:"file_size,omitempty" dynamodbav:"file_size"`
	IsEdited  bool        `json:"is_edited" dynamodbav:"is_edited"`
	IsDeleted bool        `json:"is_deleted" dynamodbav:"is_deleted"`
	ReplyTo   string      `json:"reply_to,omitempty" dynamodbav:"reply_to"`
	CreatedAt time.Time   `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" dynamodbav:"updated_at"`
}
