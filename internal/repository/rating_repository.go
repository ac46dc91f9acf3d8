package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RatingRepo provides data access to the ratings table.  A rater holds at
// most one rating per subject; rating again overwrites the earlier score.
type RatingRepo struct {
	db *sql.DB
}

// NewRatingRepo returns a new RatingRepo bound to the given database.
func NewRatingRepo(db *sql.DB) *RatingRepo { return &RatingRepo{db: db} }

// ErrSelfRating is returned when a user attempts to rate themselves.
var ErrSelfRating = errors.New("cannot rate yourself")

// Upsert records the rater's score for the subject, overwriting any earlier
// score from the same rater.
func (r *RatingRepo) Upsert(ctx context.Context, raterID, subjectID uint64, score int) error {
	if raterID == subjectID {
		return ErrSelfRating
	}
	if score < 1 || score > 5 {
		return fmt.Errorf("score must be 1..5, got %d", score)
	}
	const q = `INSERT INTO ratings (rater_id, subject_id, score) VALUES (?, ?, ?)
	           ON DUPLICATE KEY UPDATE score = VALUES(score), updated_at = UTC_TIMESTAMP()`
	_, err := r.db.ExecContext(ctx, q, raterID, subjectID, score)
	return err
}

// Summary returns the subject's average score and rating count.  A subject
// with no ratings yields (0, 0, nil).
func (r *RatingRepo) Summary(ctx context.Context, subjectID uint64) (avg float64, count int, err error) {
	const q = `SELECT COALESCE(AVG(score), 0), COUNT(*) FROM ratings WHERE subject_id = ?`
	err = r.db.QueryRowContext(ctx, q, subjectID).Scan(&avg, &count)
	return avg, count, err
}
