package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kdelmo1/sano-server/internal/model"
)

// PostRepo provides CRUD operations for feed posts.  The occupant list is
// stored as a JSON array on the posts row itself; all mutation of that
// column goes through the reservation layer, never through this repository.
// All timestamp fields are assumed to be stored in UTC.
type PostRepo struct {
	db *sql.DB
}

// NewPostRepo returns a new PostRepo bound to the given database.
func NewPostRepo(db *sql.DB) *PostRepo { return &PostRepo{db: db} }

// PostDetail is the feed/detail projection returned to clients.  It joins
// the author's handle and rating summary so list screens render without
// extra round trips.
type PostDetail struct {
	ID            uint64   `json:"id"`
	AuthorID      uint64   `json:"author_id"`
	AuthorHandle  string   `json:"author_handle"`
	AuthorRating  *float64 `json:"author_rating,omitempty"`
	Type          string   `json:"type"`
	Title         string   `json:"title"`
	Body          string   `json:"body"`
	Location      string   `json:"location"`
	Capacity      int      `json:"capacity"`
	OccupantCount int      `json:"occupant_count"`
	Occupants     []string `json:"occupants"`
	StartsAt      string   `json:"starts_at"`
	EndsAt        string   `json:"ends_at"`
	CreatedAt     string   `json:"created_at"`
}

// Create inserts a new post with an empty occupant list and populates the
// generated ID and timestamps on the provided record.
func (r *PostRepo) Create(ctx context.Context, rec *model.Post) error {
	if rec.Capacity < 1 {
		return fmt.Errorf("capacity must be positive, got %d", rec.Capacity)
	}
	if !rec.EndsAt.After(rec.StartsAt) {
		return fmt.Errorf("ends_at must be after starts_at")
	}
	const q = `INSERT INTO posts (author_id, type, title, body, location, capacity, occupants, starts_at, ends_at)
	           VALUES (?, ?, ?, ?, ?, ?, '[]', ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		rec.AuthorID, rec.Type, rec.Title, rec.Body, rec.Location, rec.Capacity,
		rec.StartsAt.UTC().Format("2006-01-02 15:04:05"),
		rec.EndsAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = uint64(id)
	rec.Occupants = []string{}
	// Query back timestamps set by the database.
	const sel = `SELECT created_at, updated_at FROM posts WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, rec.ID).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

// GetByID returns a single post with author handle and rating summary.
// When no post with the given ID exists, ErrPostNotFound is returned.
func (r *PostRepo) GetByID(ctx context.Context, postID uint64) (*PostDetail, error) {
	const q = `SELECT p.id, p.author_id, u.handle, p.type, p.title, p.body, p.location,
	                  p.capacity, p.occupants, p.starts_at, p.ends_at, p.created_at,
	                  AVG(rt.score)
	           FROM posts p
	           JOIN users u ON u.id = p.author_id
	           LEFT JOIN ratings rt ON rt.subject_id = p.author_id
	           WHERE p.id = ?
	           GROUP BY p.id, p.author_id, u.handle, p.type, p.title, p.body, p.location,
	                    p.capacity, p.occupants, p.starts_at, p.ends_at, p.created_at`
	det, err := r.scanDetail(r.db.QueryRowContext(ctx, q, postID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return det, nil
}

// ListActive returns posts whose validity window has not yet closed, newest
// first.  The limit caps the page size; zero selects a default of 50.
func (r *PostRepo) ListActive(ctx context.Context, limit int) ([]PostDetail, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT p.id, p.author_id, u.handle, p.type, p.title, p.body, p.location,
	                  p.capacity, p.occupants, p.starts_at, p.ends_at, p.created_at,
	                  AVG(rt.score)
	           FROM posts p
	           JOIN users u ON u.id = p.author_id
	           LEFT JOIN ratings rt ON rt.subject_id = p.author_id
	           WHERE p.ends_at > UTC_TIMESTAMP()
	           GROUP BY p.id, p.author_id, u.handle, p.type, p.title, p.body, p.location,
	                    p.capacity, p.occupants, p.starts_at, p.ends_at, p.created_at
	           ORDER BY p.created_at DESC
	           LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]PostDetail, 0)
	for rows.Next() {
		det, err := r.scanDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, *det)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

// DeleteOwned removes a post after verifying the caller authored it.  It
// returns ErrPostNotFound when the post does not exist and ErrForbidden
// when it belongs to another user.
func (r *PostRepo) DeleteOwned(ctx context.Context, postID, authorID uint64) error {
	var actual uint64
	err := r.db.QueryRowContext(ctx, `SELECT author_id FROM posts WHERE id = ?`, postID).Scan(&actual)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPostNotFound
		}
		return err
	}
	if actual != authorID {
		return ErrForbidden
	}
	_, err = r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, postID)
	return err
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *PostRepo) scanDetail(row rowScanner) (*PostDetail, error) {
	var det PostDetail
	var occRaw sql.NullString
	var starts, ends, created time.Time
	var avg sql.NullFloat64
	if err := row.Scan(
		&det.ID, &det.AuthorID, &det.AuthorHandle, &det.Type, &det.Title, &det.Body,
		&det.Location, &det.Capacity, &occRaw, &starts, &ends, &created, &avg,
	); err != nil {
		return nil, err
	}
	det.Occupants = []string{}
	if occRaw.Valid && occRaw.String != "" {
		if err := json.Unmarshal([]byte(occRaw.String), &det.Occupants); err != nil {
			return nil, fmt.Errorf("decode occupants for post %d: %w", det.ID, err)
		}
		if det.Occupants == nil {
			det.Occupants = []string{}
		}
	}
	det.OccupantCount = len(det.Occupants)
	det.StartsAt = starts.UTC().Format(time.RFC3339)
	det.EndsAt = ends.UTC().Format(time.RFC3339)
	det.CreatedAt = created.UTC().Format(time.RFC3339)
	if avg.Valid {
		v := avg.Float64
		det.AuthorRating = &v
	}
	return &det, nil
}
