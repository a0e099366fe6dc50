package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence. Table names match the legacy schema.
type UserModel struct {
	ID        int64     `gorm:"column:user_id;primaryKey;autoIncrement"`
	Username  string    `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

type SessionModel struct {
	ID        string    `gorm:"column:session_id;primaryKey"`
	UserID    int64     `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

func (SessionModel) TableName() string { return "sessions" }

type MessageModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	SessionID   string    `gorm:"not null;index:idx_messages_session_created,priority:1"`
	Sender      string    `gorm:"not null"`
	MessageText string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"not null;index:idx_messages_session_created,priority:2"`
}

func (MessageModel) TableName() string { return "messages" }

type ReceiptModel struct {
	ID          int64  `gorm:"column:receipt_id;primaryKey;autoIncrement"`
	UserID      int64  `gorm:"not null;index:idx_receipt_user_created,priority:1"`
	ReceiptText string `gorm:"type:text;not null"`
	ImageKey    string
	Metadata    datatypes.JSON
	CreatedAt   time.Time `gorm:"not null;index:idx_receipt_user_created,priority:2"`
}

func (ReceiptModel) TableName() string { return "receipt" }
