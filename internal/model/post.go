package model

import "time"

// Post types.  Events gather people at a time and place; giveaways hand out
// a limited number of items first come, first served.
const (
	PostTypeEvent    = "EVENT"
	PostTypeGiveaway = "GIVEAWAY"
)

// Post represents a time-bounded post in the campus feed.  A post carries a
// fixed capacity and an ordered occupant list; insertion order is the
// reservation order and a handle never appears twice.
//
// Fields:
//  ID        – primary key identifier.
//  AuthorID  – user who created the post.
//  Type      – EVENT or GIVEAWAY.
//  Title     – short display title.
//  Body      – free-form description.
//  Location  – where the event or pickup happens.
//  Capacity  – maximum concurrent occupants (slots).
//  Occupants – ordered list of user handles holding a slot.
//  StartsAt  – when the post becomes relevant.
//  EndsAt    – validity bound; reservations are refused after this.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Post struct {
	ID        uint64    // posts.id
	AuthorID  uint64    // posts.author_id
	Type      string    // posts.type
	Title     string    // posts.title
	Body      string    // posts.body
	Location  string    // posts.location
	Capacity  int       // posts.capacity
	Occupants []string  // posts.occupants (JSON array)
	StartsAt  time.Time // posts.starts_at
	EndsAt    time.Time // posts.ends_at
	CreatedAt time.Time // posts.created_at
	UpdatedAt time.Time // posts.updated_at
}

// Message is one direct message between two users about a post.
//
// Fields:
//  ID          – primary key identifier.
//  PostID      – the post the conversation is about.
//  SenderID    – user who sent the message.
//  RecipientID – user who receives the message.
//  Body        – message text.
//  CreatedAt   – send timestamp.
type Message struct {
	ID          uint64    // messages.id
	PostID      uint64    // messages.post_id
	SenderID    uint64    // messages.sender_id
	RecipientID uint64    // messages.recipient_id
	Body        string    // messages.body
	CreatedAt   time.Time // messages.created_at
}

// Ratings (one user scoring another 1..5) are stored but never loaded as
// whole rows; the repository only ever needs the aggregate, so there is no
// row mirror for them here.
