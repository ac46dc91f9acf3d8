// Package store provides the MySQL-backed implementation of the reservation
// store contract.  Occupant lists live in a JSON column on the posts table;
// the atomic reserve/unreserve paths go through stored procedures that
// re-check capacity on the server, and the fallback path overwrites the
// column directly.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/kdelmo1/sano-server/internal/reservation"
)

// PostStore implements reservation.Store on top of MySQL.
type PostStore struct {
	db *sql.DB
}

// NewPostStore returns a PostStore bound to the given database.
func NewPostStore(db *sql.DB) *PostStore { return &PostStore{db: db} }

// FetchPost reads the occupant list and capacity for a post.  The occupants
// column holds a JSON array of user handles; NULL and the empty string are
// treated as an empty list.
func (s *PostStore) FetchPost(ctx context.Context, postID uint64) ([]string, int, error) {
	const q = `SELECT occupants, capacity FROM posts WHERE id = ?`
	var raw sql.NullString
	var capacity int
	err := s.db.QueryRowContext(ctx, q, postID).Scan(&raw, &capacity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, reservation.ErrPostNotFound
		}
		return nil, 0, err
	}
	occupants, err := decodeOccupants(raw)
	if err != nil {
		return nil, 0, err
	}
	return occupants, capacity, nil
}

// AtomicReserve calls the sp_post_reserve procedure.  The procedure appends
// the user inside a single statement, re-checking capacity server-side, and
// selects the updated occupant list.  A missing or unreachable procedure maps
// to reservation.ErrUnavailable so the coordinator can fall back.
func (s *PostStore) AtomicReserve(ctx context.Context, postID uint64, user string) ([]string, error) {
	return s.callProcedure(ctx, `CALL sp_post_reserve(?, ?)`, postID, user)
}

// AtomicUnreserve calls the sp_post_unreserve procedure, the removal
// counterpart of AtomicReserve.
func (s *PostStore) AtomicUnreserve(ctx context.Context, postID uint64, user string) ([]string, error) {
	return s.callProcedure(ctx, `CALL sp_post_unreserve(?, ?)`, postID, user)
}

func (s *PostStore) callProcedure(ctx context.Context, call string, postID uint64, user string) ([]string, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, call, postID, user).Scan(&raw)
	if err != nil {
		if procedureUnavailable(err) {
			return nil, reservation.ErrUnavailable
		}
		if capacityRejected(err) {
			return nil, reservation.ErrRejected
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrPostNotFound
		}
		return nil, err
	}
	return decodeOccupants(raw)
}

// WriteOccupants overwrites the occupants column unconditionally.  This is
// the fallback path only; last writer wins.
func (s *PostStore) WriteOccupants(ctx context.Context, postID uint64, occupants []string) error {
	body, err := json.Marshal(occupants)
	if err != nil {
		return err
	}
	const q = `UPDATE posts SET occupants = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, string(body), postID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	// RowsAffected is 0 both for a missing row and for an identical list;
	// distinguish with an existence probe only in the missing case.
	if n == 0 {
		var one int
		if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, postID).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return reservation.ErrPostNotFound
			}
			return err
		}
	}
	return nil
}

func decodeOccupants(raw sql.NullString) ([]string, error) {
	if !raw.Valid || raw.String == "" {
		return []string{}, nil
	}
	var occupants []string
	if err := json.Unmarshal([]byte(raw.String), &occupants); err != nil {
		return nil, fmt.Errorf("decode occupants: %w", err)
	}
	if occupants == nil {
		occupants = []string{}
	}
	return occupants, nil
}

// MySQL error numbers used to classify procedure failures.
const (
	mysqlErrProcedureMissing = 1305 // PROCEDURE does not exist
	mysqlErrSignalException  = 1644 // unhandled user-defined SIGNAL

	// sp_post_reserve raises SIGNAL SQLSTATE '45000' with this message
	// when the post is already at capacity.
	fullSignalMessage = "post full"
)

// procedureUnavailable reports whether the error means the atomic procedure
// cannot be invoked at all, as opposed to having run and refused.
func procedureUnavailable(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrProcedureMissing
	}
	// Driver-level failures (broken connection, bad handshake) also mean
	// the procedural path is not reachable right now.
	return errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, sql.ErrConnDone)
}

// capacityRejected reports whether the procedure ran and signalled that the
// post is full.
func capacityRejected(err error) bool {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	return myErr.Number == mysqlErrSignalException && myErr.Message == fullSignalMessage
}
