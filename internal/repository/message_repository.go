package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/kdelmo1/sano-server/internal/model"
)

// MessageRepo provides data access to the messages table.  Messages are
// plain rows; live delivery happens through the broker, so this repository
// only covers persistence and history reads.
type MessageRepo struct {
	db *sql.DB
}

// NewMessageRepo returns a new MessageRepo bound to the given database.
func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{db: db} }

// MessageDetail is the conversation projection returned to clients.
type MessageDetail struct {
	ID              uint64 `json:"id"`
	PostID          uint64 `json:"post_id"`
	SenderID        uint64 `json:"sender_id"`
	SenderHandle    string `json:"sender_handle"`
	RecipientID     uint64 `json:"recipient_id"`
	RecipientHandle string `json:"recipient_handle"`
	Body            string `json:"body"`
	CreatedAt       string `json:"created_at"`
}

// Create inserts a message and populates the generated ID and timestamp.
func (r *MessageRepo) Create(ctx context.Context, rec *model.Message) error {
	const q = `INSERT INTO messages (post_id, sender_id, recipient_id, body) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, rec.PostID, rec.SenderID, rec.RecipientID, rec.Body)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = uint64(id)
	const sel = `SELECT created_at FROM messages WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, rec.ID).Scan(&rec.CreatedAt)
}

// Conversation returns all messages about a post exchanged between the two
// users, oldest first.  Either user may be sender or recipient in any row.
func (r *MessageRepo) Conversation(ctx context.Context, postID, userA, userB uint64) ([]MessageDetail, error) {
	const q = `SELECT m.id, m.post_id, m.sender_id, s.handle, m.recipient_id, rcp.handle, m.body, m.created_at
	           FROM messages m
	           JOIN users s ON s.id = m.sender_id
	           JOIN users rcp ON rcp.id = m.recipient_id
	           WHERE m.post_id = ?
	             AND ((m.sender_id = ? AND m.recipient_id = ?) OR (m.sender_id = ? AND m.recipient_id = ?))
	           ORDER BY m.created_at ASC, m.id ASC`
	rows, err := r.db.QueryContext(ctx, q, postID, userA, userB, userB, userA)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]MessageDetail, 0)
	for rows.Next() {
		var d MessageDetail
		var created time.Time
		if err := rows.Scan(&d.ID, &d.PostID, &d.SenderID, &d.SenderHandle,
			&d.RecipientID, &d.RecipientHandle, &d.Body, &created); err != nil {
			return nil, err
		}
		d.CreatedAt = created.UTC().Format(time.RFC3339)
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
