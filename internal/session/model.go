package session

import (
	"time"
)

const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatSession carries the server-enforced timer. Status is a cache: whether
// the session is actually usable also depends on wall-clock time, so always
// go through ResolveStatus.
type ChatSession struct {
	ID              int        `db:"id" json:"-"`
	SessionID       string     `db:"session_id" json:"session_id"`
	UserID          int        `db:"user_id" json:"user_id"`
	Category        string     `db:"category" json:"category"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	StartTime       *time.Time `db:"session_start_time" json:"session_start_time"`
	EndTime         *time.Time `db:"session_end_time" json:"session_end_time"`
	DurationSeconds int        `db:"duration_seconds" json:"duration_seconds"`
	Status          string     `db:"status" json:"status"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

type Message struct {
	ID        int       `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	Role      string    `db:"role" json:"role"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type StartSessionRequest struct {
	Category string `json:"category" binding:"required"`
}

type ExtendSessionRequest struct {
	DurationSeconds int    `json:"duration_seconds" validate:"required,gt=0,whole_minutes"`
	RequestID       string `json:"request_id" validate:"max=128"`
}

type NotesRequest struct {
	Notes string `json:"notes"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type StartSessionResponse struct {
	SessionID        string     `json:"session_id"`
	SessionStartTime *time.Time `json:"session_start_time"`
	SessionEndTime   *time.Time `json:"session_end_time"`
	DurationSeconds  int        `json:"duration_seconds"`
	Status           string     `json:"status"`
	RemainingSeconds int        `json:"remaining_seconds"`
	CostCharged      *string    `json:"cost_charged"`
	WalletBalance    string     `json:"wallet_balance"`
	WalletReserved   string     `json:"wallet_reserved"`
}

type ExtendSessionResponse struct {
	SessionID        string     `json:"session_id"`
	SessionStartTime *time.Time `json:"session_start_time"`
	SessionEndTime   *time.Time `json:"session_end_time"`
	DurationSeconds  int        `json:"duration_seconds"`
	RemainingSeconds int        `json:"remaining_seconds"`
	CostCharged      string     `json:"cost_charged"`
	WalletBalance    string     `json:"wallet_balance"`
	WalletReserved   string     `json:"wallet_reserved"`
}

type ConversationItem struct {
	SessionID        string  `json:"session_id"`
	Category         string  `json:"category"`
	UpdatedAt        string  `json:"updated_at"`
	Notes            *string `json:"notes"`
	Status           string  `json:"status"`
	RemainingSeconds int     `json:"remaining_seconds"`
}

type MessageOut struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type HistoryResponse struct {
	SessionID        string       `json:"session_id"`
	Category         string       `json:"category"`
	SessionStartTime *time.Time   `json:"session_start_time"`
	SessionEndTime   *time.Time   `json:"session_end_time"`
	DurationSeconds  int          `json:"duration_seconds"`
	Status           string       `json:"status"`
	RemainingSeconds int          `json:"remaining_seconds"`
	Messages         []MessageOut `json:"messages"`
}
