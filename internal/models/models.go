package models

import "time"

// User is one conversing party, keyed externally by their Telegram ID.
// Created on the first inbound message from a previously unseen identity.
type User struct {
	ID           int64     `json:"id"`
	TelegramID   int64     `json:"telegram_id"`
	Username     string    `json:"username,omitempty"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	IsBlocked    bool      `json:"is_blocked"`
	RequestCount int       `json:"request_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// DisplayName returns the best human-readable handle for the user.
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Username != "" {
		return u.Username
	}
	return "user"
}

// Message is one conversation turn, either user-authored or bot-authored.
// Messages are append-only; CreatedAt ordering must reflect the true
// conversational order.
type Message struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Text      string    `json:"text"`
	FromBot   bool      `json:"from_bot"`
	CreatedAt time.Time `json:"created_at"`
}

// FaqEntry is one administrator-curated question/answer pair. Keywords is a
// comma-separated list used as a last-resort match tier.
type FaqEntry struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Keywords  string    `json:"keywords,omitempty"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
