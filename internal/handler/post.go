package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kdelmo1/sano-server/internal/model"
	"github.com/kdelmo1/sano-server/internal/repository"
)

// PostHandler serves the feed: creating, browsing and deleting posts.  The
// occupant list shown on each post is read-only here; mutating it is the
// reservation handler's job.
type PostHandler struct {
	Posts *repository.PostRepo
}

// NewPostHandler constructs a PostHandler.  The repository must be non-nil.
func NewPostHandler(posts *repository.PostRepo) *PostHandler {
	if posts == nil {
		panic("nil repository passed to NewPostHandler")
	}
	return &PostHandler{Posts: posts}
}

// CreatePost handles POST /v1/posts.  The request body carries type, title,
// body, location, capacity and the validity window as RFC3339 timestamps.
// Returns 201 with the created post's ID.
func (h *PostHandler) CreatePost(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Type     string `json:"type"`
		Title    string `json:"title"`
		Body     string `json:"body"`
		Location string `json:"location"`
		Capacity int    `json:"capacity"`
		StartsAt string `json:"starts_at"`
		EndsAt   string `json:"ends_at"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Type != model.PostTypeEvent && body.Type != model.PostTypeGiveaway {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "type must be EVENT or GIVEAWAY"})
	}
	if body.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}
	if body.Capacity < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be positive"})
	}
	starts, err := time.Parse(time.RFC3339, body.StartsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid starts_at"})
	}
	ends, err := time.Parse(time.RFC3339, body.EndsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ends_at"})
	}
	if !ends.After(starts) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be after starts_at"})
	}
	if !ends.After(time.Now().UTC()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "post would already be expired"})
	}

	rec := &model.Post{
		AuthorID: userID,
		Type:     body.Type,
		Title:    body.Title,
		Body:     body.Body,
		Location: body.Location,
		Capacity: body.Capacity,
		StartsAt: starts,
		EndsAt:   ends,
	}
	if err := h.Posts.Create(c.Request().Context(), rec); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create post"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":        rec.ID,
		"capacity":  rec.Capacity,
		"occupants": rec.Occupants,
	})
}

// ListFeed handles GET /v1/posts.  It returns active posts (validity window
// still open), newest first.  An optional ?limit= query caps the page size.
func (h *PostHandler) ListFeed(c echo.Context) error {
	limit := 0
	if s := c.QueryParam("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	items, err := h.Posts.ListActive(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load feed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetPost handles GET /v1/posts/:id, returning the detail projection with
// occupancy and the author's rating summary.
func (h *PostHandler) GetPost(c echo.Context) error {
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
	return c.JSON(http.StatusOK, echo.Map{"item": det})
}

// DeletePost handles DELETE /v1/posts/:id.  Only the author may delete
// their post.  Returns 204 on success, 404 when missing, 403 when the post
// belongs to someone else.
func (h *PostHandler) DeletePost(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	postID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || postID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid post id"})
	}
	if err := h.Posts.DeleteOwned(c.Request().Context(), postID, userID); err != nil {
		switch {
		case errors.Is(err, repository.ErrPostNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "post not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete post"})
	}
	return c.NoContent(http.StatusNoContent)
}
