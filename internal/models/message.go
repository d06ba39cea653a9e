package models

import "time"

type Message struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	RoomID    string    `json:"roomId"`
	ReplyTo   *ReplyRef `json:"replyTo,omitempty"`
	Edited    bool      `json:"edited"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReplyRef is the resolved reference to the message a reply points at.
type ReplyRef struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Message  string `json:"message"`
}
