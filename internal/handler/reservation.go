package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kdelmo1/sano-server/internal/queue"
	"github.com/kdelmo1/sano-server/internal/repository"
	"github.com/kdelmo1/sano-server/internal/reservation"
	queuepublisher "github.com/kdelmo1/sano-server/internal/service"
)

// Toggler flips a user's slot on a post. Implemented by
// reservation.Coordinator.
type Toggler interface {
	Toggle(ctx context.Context, postID uint64, user string) (reservation.View, error)
}

// PostReader supplies the post detail needed before a toggle: the validity
// window and the title carried on change events.
type PostReader interface {
	GetByID(ctx context.Context, postID uint64) (*repository.PostDetail, error)
}

// ReservationHandler serves the slot toggle endpoint.  The user's handle,
// not their numeric ID, is what lands in the occupant list.
type ReservationHandler struct {
	Coordinator Toggler
	Posts       PostReader
	// Publish sends the change event after a successful toggle.  Nil
	// disables publication (tests, broker-less deployments).
	Publish func(ctx context.Context, ev queue.ReservationChangedEvent) error
}

// NewReservationHandler constructs a ReservationHandler wired to the broker.
func NewReservationHandler(coord Toggler, posts PostReader) *ReservationHandler {
	return &ReservationHandler{
		Coordinator: coord,
		Posts:       posts,
		Publish:     queuepublisher.PublishReservationChanged,
	}
}

// Toggle handles POST /v1/posts/:id/reserve.  A first call reserves a slot,
// a second call by the same user releases it.  Expired posts refuse toggles
// with 410.
func (h *ReservationHandler) Toggle(c echo.Context) error {
	handle, err := getHandle(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	postID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || postID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid post id"})
	}

	det, err := h.Posts.GetByID(c.Request().Context(), postID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "post not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch post"})
	}
	if ends, err := time.Parse(time.RFC3339, det.EndsAt); err == nil && !ends.After(time.Now().UTC()) {
		return c.JSON(http.StatusGone, echo.Map{"error": "post has expired"})
	}

	view, err := h.Coordinator.Toggle(c.Request().Context(), postID, handle)
	if err != nil {
		switch {
		case errors.Is(err, reservation.ErrFull):
			return c.JSON(http.StatusConflict, echo.Map{"error": "post is full"})
		case errors.Is(err, reservation.ErrInFlight):
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "toggle already in progress"})
		case errors.Is(err, reservation.ErrPostNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "post not found"})
		case errors.Is(err, reservation.ErrNotAuthenticated):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "could not persist reservation"})
	}

	if h.Publish != nil {
		ev := queue.ReservationChangedEvent{
			PostID:        view.PostID,
			PostTitle:     det.Title,
			UserHandle:    handle,
			Reserved:      view.IsReserved,
			OccupantCount: view.OccupantCount,
			Capacity:      view.Capacity,
			Occupants:     view.Occupants,
			ChangedAt:     time.Now().UTC().Format(time.RFC3339),
		}
		// A toggle that persisted succeeds even when the broker is down.
		pctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = h.Publish(pctx, ev)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"post_id":        view.PostID,
		"reserved":       view.IsReserved,
		"occupant_count": view.OccupantCount,
		"capacity":       view.Capacity,
		"occupants":      view.Occupants,
	})
}
