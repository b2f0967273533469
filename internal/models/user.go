package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Admin struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the part of a customer record filled in during signup.
type Profile struct {
	FullName string `json:"full_name" validate:"required,min=2,max=150"`
	Phone    string `json:"phone" validate:"omitempty,e164"`
	Address  string `json:"address" validate:"max=500"`
}

type SenderRole string

const (
	SenderCustomer SenderRole = "customer"
	SenderAdmin    SenderRole = "admin"
)

// ChatMessage rows are append-only. Seq is assigned by the store and gives
// every reader of a conversation the same total order; deletes leave a
// tombstone in place.
type ChatMessage struct {
	Seq             int64      `json:"id"`
	ConversationKey uuid.UUID  `json:"user_id"`
	SenderRole      SenderRole `json:"sender_role"`
	SenderID        uuid.UUID  `json:"sender_id"`
	Body            string     `json:"message"`
	Version         int        `json:"version"`
	IsRead          bool       `json:"is_read"`
	Deleted         bool       `json:"deleted"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type MessageRevision struct {
	MessageSeq int64     `json:"message_id"`
	Version    int       `json:"version"`
	Body       string    `json:"message"`
	EditedAt   time.Time `json:"edited_at"`
}

type Conversation struct {
	ConversationKey uuid.UUID `json:"user_id"`
	CustomerName    string    `json:"customer_name"`
	CustomerEmail   string    `json:"customer_email"`
	LastMessage     string    `json:"last_message"`
	LastMessageAt   time.Time `json:"last_message_at"`
	Unread          int       `json:"unread"`
}
