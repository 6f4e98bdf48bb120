package models

import "time"

type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "new"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Ticket is a support request escalated for human follow-up. Status
// transitions are administrator-driven and unordered: any status is
// reachable from any other.
type Ticket struct {
	ID          int64          `json:"id"`
	UserID      int64          `json:"user_id"`
	Status      TicketStatus   `json:"status"`
	Priority    TicketPriority `json:"priority"`
	IssueType   string         `json:"issue_type"`
	Description string         `json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Stats is an aggregate snapshot for the admin /stats command.
type Stats struct {
	Users             int        `json:"users"`
	TotalRequests     int        `json:"total_requests"`
	Messages          int        `json:"messages"`
	Faqs              int        `json:"faqs"`
	TicketsTotal      int        `json:"tickets_total"`
	TicketsNew        int        `json:"tickets_new"`
	TicketsInProgress int        `json:"tickets_in_progress"`
	TicketsResolved   int        `json:"tickets_resolved"`
	TicketsClosed     int        `json:"tickets_closed"`
	LastActivity      *time.Time `json:"last_activity,omitempty"`
}
