// Package queue defines message payloads exchanged over the message broker.
// These events are the change-notification channel the mobile client
// subscribes to: reservation flips and new messages fan out here so open
// screens can refresh without polling.
package queue

// ReservationChangedEvent is published after a toggle successfully mutates
// a post's occupant list.  It carries enough state for consumers to update
// a rendered post without querying the primary database.
type ReservationChangedEvent struct {
	PostID        uint64   `json:"post_id"`
	PostTitle     string   `json:"post_title"`
	UserHandle    string   `json:"user_handle"`
	Reserved      bool     `json:"reserved"` // true = slot taken, false = slot released
	OccupantCount int      `json:"occupant_count"`
	Capacity      int      `json:"capacity"`
	Occupants     []string `json:"occupants"`
	ChangedAt     string   `json:"changed_at"`
}

// MessageSentEvent is published when a direct message is stored.  Consumers
// route it to the recipient's open conversation.
type MessageSentEvent struct {
	MessageID       uint64 `json:"message_id"`
	PostID          uint64 `json:"post_id"`
	SenderHandle    string `json:"sender_handle"`
	RecipientHandle string `json:"recipient_handle"`
	Body            string `json:"body"`
	SentAt          string `json:"sent_at"`
}
