package domain

import "time"

// Sender tags who authored a message.
type Sender string

const (
	SenderUser Sender = "User"
	SenderAI   Sender = "AI"
)

// DefaultUsername is used when a request carries no username.
const DefaultUsername = "default"

type User struct {
	ID        int64     `json:"userId"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

type Session struct {
	ID        string    `json:"sessionId"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Receipt is one successful OCR extraction.
type Receipt struct {
	ID        int64             `json:"id"`
	UserID    int64             `json:"userId"`
	Text      string            `json:"text"`
	ImageKey  string            `json:"-"`
	HasImage  bool              `json:"hasImage"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
