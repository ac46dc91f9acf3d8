package handler

import (
	"errors"
	"math"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kdelmo1/sano-server/internal/repository"
)

// RatingHandler serves peer ratings.  Each (rater, subject) pair holds at
// most one score; re-rating overwrites the previous value.
type RatingHandler struct {
	Ratings *repository.RatingRepo
	Users   *repository.UserRepo
}

// NewRatingHandler constructs a RatingHandler.
func NewRatingHandler(ratings *repository.RatingRepo, users *repository.UserRepo) *RatingHandler {
	return &RatingHandler{Ratings: ratings, Users: users}
}

// Rate handles PUT /v1/users/:handle/rating with a body of {"score": 1..5}.
func (h *RatingHandler) Rate(c echo.Context) error {
	raterID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	subject, err := h.Users.GetByHandle(c.Request().Context(), c.Param("handle"))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to resolve user"})
	}
	var body struct {
		Score int `json:"score"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Score < 1 || body.Score > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "score must be between 1 and 5"})
	}
	if err := h.Ratings.Upsert(c.Request().Context(), raterID, subject.ID, body.Score); err != nil {
		if errors.Is(err, repository.ErrSelfRating) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot rate yourself"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to store rating"})
	}
	return c.JSON(http.StatusOK, echo.Map{"subject": subject.Handle, "score": body.Score})
}

// Summary handles GET /v1/users/:handle/rating, returning the average score
// and rating count for the named user.
func (h *RatingHandler) Summary(c echo.Context) error {
	subject, err := h.Users.GetByHandle(c.Request().Context(), c.Param("handle"))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to resolve user"})
	}
	avg, count, err := h.Ratings.Summary(c.Request().Context(), subject.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load rating summary"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"subject": subject.Handle,
		"average": math.Round(avg*100) / 100,
		"count":   count,
	})
}
