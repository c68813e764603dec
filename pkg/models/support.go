package models

import "time"

// Ticket status values
const (
	TicketStatusOpen     = "open"
	TicketStatusResolved = "resolved"
	TicketStatusClosed   = "closed"
)

// Ticket is a support ticket owned by the core API.
type Ticket struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// TicketMessage is one message in a ticket conversation. Sender is either
// "user" or "assistant".
type TicketMessage struct {
	ID        string    `json:"id,omitempty"`
	TicketID  string    `json:"ticket_id,omitempty"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is one entry in the user's notification feed.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type,omitempty"`
	Seen      bool      `json:"seen"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
}
