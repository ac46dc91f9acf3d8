package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kdelmo1/sano-server/internal/queue"
	"github.com/kdelmo1/sano-server/internal/repository"
	"github.com/kdelmo1/sano-server/internal/reservation"
)

type fakeToggler struct {
	view reservation.View
	err  error
	got  struct {
		postID uint64
		user   string
	}
}

func (f *fakeToggler) Toggle(_ context.Context, postID uint64, user string) (reservation.View, error) {
	f.got.postID = postID
	f.got.user = user
	return f.view, f.err
}

type fakePostReader struct {
	detail *repository.PostDetail
	err    error
}

func (f *fakePostReader) GetByID(context.Context, uint64) (*repository.PostDetail, error) {
	return f.detail, f.err
}

func activeDetail(title string) *repository.PostDetail {
	return &repository.PostDetail{
		ID:     7,
		Title:  title,
		EndsAt: time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
	}
}

func newToggleContext(t *testing.T, postID, handle string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/posts/"+postID+"/reserve", strings.NewReader(""))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(postID)
	if handle != "" {
		c.Set("handle", handle)
	}
	return c, rec
}

func TestToggleEndpointSuccess(t *testing.T) {
	tg := &fakeToggler{view: reservation.View{
		PostID:        7,
		IsReserved:    true,
		OccupantCount: 1,
		Capacity:      2,
		Occupants:     []string{"ada"},
	}}
	var published *queue.ReservationChangedEvent
	h := &ReservationHandler{
		Coordinator: tg,
		Posts:       &fakePostReader{detail: activeDetail("study group")},
		Publish: func(_ context.Context, ev queue.ReservationChangedEvent) error {
			published = &ev
			return nil
		},
	}

	c, rec := newToggleContext(t, "7", "ada")
	if err := h.Toggle(c); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if tg.got.postID != 7 || tg.got.user != "ada" {
		t.Fatalf("coordinator called with (%d, %q)", tg.got.postID, tg.got.user)
	}

	var body struct {
		Reserved      bool     `json:"reserved"`
		OccupantCount int      `json:"occupant_count"`
		Occupants     []string `json:"occupants"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Reserved || body.OccupantCount != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}

	if published == nil {
		t.Fatal("no event published")
	}
	if published.PostTitle != "study group" || published.UserHandle != "ada" || !published.Reserved {
		t.Fatalf("unexpected event: %+v", published)
	}
}

func TestToggleEndpointErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"full", reservation.ErrFull, http.StatusConflict},
		{"in flight", reservation.ErrInFlight, http.StatusTooManyRequests},
		{"missing post", reservation.ErrPostNotFound, http.StatusNotFound},
		{"not authenticated", reservation.ErrNotAuthenticated, http.StatusUnauthorized},
		{"persistence failed", reservation.ErrPersistenceFailed, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &ReservationHandler{
				Coordinator: &fakeToggler{err: tc.err},
				Posts:       &fakePostReader{detail: activeDetail("x")},
			}
			c, rec := newToggleContext(t, "7", "ada")
			if err := h.Toggle(c); err != nil {
				t.Fatalf("Toggle returned error: %v", err)
			}
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestToggleEndpointExpiredPost(t *testing.T) {
	det := activeDetail("old event")
	det.EndsAt = time.Now().UTC().Add(-time.Minute).Format(time.RFC3339)
	tg := &fakeToggler{}
	h := &ReservationHandler{Coordinator: tg, Posts: &fakePostReader{detail: det}}

	c, rec := newToggleContext(t, "7", "ada")
	if err := h.Toggle(c); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	if rec.Code != http.StatusGone {
		t.Fatalf("status = %d, want 410", rec.Code)
	}
	if tg.got.user != "" {
		t.Fatal("coordinator must not be called for an expired post")
	}
}

func TestToggleEndpointMissingPost(t *testing.T) {
	h := &ReservationHandler{
		Coordinator: &fakeToggler{},
		Posts:       &fakePostReader{err: repository.ErrPostNotFound},
	}
	c, rec := newToggleContext(t, "7", "ada")
	if err := h.Toggle(c); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestToggleEndpointNoHandle(t *testing.T) {
	h := &ReservationHandler{Coordinator: &fakeToggler{}, Posts: &fakePostReader{}}
	c, rec := newToggleContext(t, "7", "")
	if err := h.Toggle(c); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestToggleEndpointBadPostID(t *testing.T) {
	h := &ReservationHandler{Coordinator: &fakeToggler{}, Posts: &fakePostReader{}}
	c, rec := newToggleContext(t, "abc", "ada")
	if err := h.Toggle(c); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
