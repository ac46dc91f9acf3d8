package reservation

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"
)

// View is the caller-facing reflection of a post's occupancy after a
// successful toggle.  Handlers render it directly ("x / y filled"); nothing
// in it should be treated as authoritative beyond the moment it was built.
type View struct {
	PostID        uint64   `json:"post_id"`
	IsReserved    bool     `json:"is_reserved"`
	OccupantCount int      `json:"occupant_count"`
	Capacity      int      `json:"capacity"`
	Occupants     []string `json:"occupants"`
}

// Coordinator flips a user's occupancy of a post between reserved and not
// reserved.  It always consults the store with a fresh read before mutating,
// prefers the atomic reserve/unreserve procedure, and degrades to an
// unconditional occupant-list overwrite when the procedure is unavailable.
//
// Toggle is a flip, not a set: calling it twice with no intervening external
// change returns the user to their original state.  Callers must not retry a
// toggle blindly on transient failure, since a retry after a successful but
// unacknowledged call would flip the state back.
type Coordinator struct {
	store  Store
	budget time.Duration

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// DefaultBudget bounds a single toggle end to end, covering the fetch, the
// atomic attempt and the fallback write together.
const DefaultBudget = 10 * time.Second

// NewCoordinator returns a Coordinator bound to the given store.  A budget
// of zero or less selects DefaultBudget.
func NewCoordinator(store Store, budget time.Duration) *Coordinator {
	if store == nil {
		panic("nil store passed to NewCoordinator")
	}
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Coordinator{
		store:    store,
		budget:   budget,
		inFlight: make(map[string]struct{}),
	}
}

// Toggle flips the user's reservation on the post and returns the resulting
// view.  Exactly one remote mutation happens on success; zero mutations
// happen when ErrFull is returned from the capacity pre-check.  A second
// concurrent Toggle for the same (post, user) pair returns ErrInFlight.
func (co *Coordinator) Toggle(ctx context.Context, postID uint64, user string) (View, error) {
	if user == "" {
		return View{}, ErrNotAuthenticated
	}
	key := flightKey(postID, user)
	if !co.acquire(key) {
		return View{}, ErrInFlight
	}
	defer co.release(key)

	ctx, cancel := context.WithTimeout(ctx, co.budget)
	defer cancel()

	// Consistency read immediately before mutating; never a cached value.
	occupants, capacity, err := co.store.FetchPost(ctx, postID)
	if err != nil {
		if err == ErrPostNotFound {
			return View{}, err
		}
		log.Printf("reservation: fetch post %d failed: %v", postID, err)
		return View{}, ErrPersistenceFailed
	}

	if contains(occupants, user) {
		return co.unreserve(ctx, postID, user, occupants, capacity)
	}
	return co.reserve(ctx, postID, user, occupants, capacity)
}

// reserve adds the user to the occupant list.  The fresh count gates the
// attempt locally; the atomic procedure re-checks capacity at the server and
// is the authoritative guard.
func (co *Coordinator) reserve(ctx context.Context, postID uint64, user string, occupants []string, capacity int) (View, error) {
	if len(occupants) >= capacity {
		// Refused before any write is attempted.
		return View{}, ErrFull
	}

	updated, err := co.store.AtomicReserve(ctx, postID, user)
	switch {
	case err == nil:
		if updated == nil {
			// Procedure succeeded without returning the list; append
			// locally to mirror what the server applied.
			updated = appendUnique(occupants, user)
		}
		return co.view(postID, user, updated, capacity), nil
	case err == ErrRejected:
		return View{}, ErrFull
	case err == ErrUnavailable:
		// Degrade to the best-effort overwrite.  The capacity check
		// reuses the initial fetch, so two clients that both passed the
		// pre-check can both land here and transiently over-book; the
		// feature staying available is preferred over blocking it.
		log.Printf("reservation: atomic reserve unavailable for post %d, using fallback", postID)
		updated = appendUnique(occupants, user)
		if err := co.store.WriteOccupants(ctx, postID, updated); err != nil {
			log.Printf("reservation: fallback reserve write failed for post %d: %v", postID, err)
			return View{}, ErrPersistenceFailed
		}
		return co.view(postID, user, updated, capacity), nil
	default:
		log.Printf("reservation: atomic reserve failed for post %d: %v", postID, err)
		return View{}, ErrPersistenceFailed
	}
}

// unreserve removes the user from the occupant list, preserving the relative
// order of the remaining occupants.
func (co *Coordinator) unreserve(ctx context.Context, postID uint64, user string, occupants []string, capacity int) (View, error) {
	updated, err := co.store.AtomicUnreserve(ctx, postID, user)
	switch {
	case err == nil:
		if updated == nil {
			updated = remove(occupants, user)
		}
		return co.view(postID, user, updated, capacity), nil
	case err == ErrUnavailable:
		log.Printf("reservation: atomic unreserve unavailable for post %d, using fallback", postID)
		updated = remove(occupants, user)
		if err := co.store.WriteOccupants(ctx, postID, updated); err != nil {
			log.Printf("reservation: fallback unreserve write failed for post %d: %v", postID, err)
			return View{}, ErrPersistenceFailed
		}
		return co.view(postID, user, updated, capacity), nil
	default:
		log.Printf("reservation: atomic unreserve failed for post %d: %v", postID, err)
		return View{}, ErrPersistenceFailed
	}
}

func (co *Coordinator) view(postID uint64, user string, occupants []string, capacity int) View {
	return View{
		PostID:        postID,
		IsReserved:    contains(occupants, user),
		OccupantCount: len(occupants),
		Capacity:      capacity,
		Occupants:     occupants,
	}
}

// acquire marks the (post, user) pair as in flight.  It returns false when a
// toggle for the same pair is already running.
func (co *Coordinator) acquire(key string) bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	if _, busy := co.inFlight[key]; busy {
		return false
	}
	co.inFlight[key] = struct{}{}
	return true
}

func (co *Coordinator) release(key string) {
	co.mu.Lock()
	defer co.mu.Unlock()
	delete(co.inFlight, key)
}

func flightKey(postID uint64, user string) string {
	// NUL separator keeps distinct pairs from colliding.
	return strconv.FormatUint(postID, 10) + "\x00" + user
}

func contains(occupants []string, user string) bool {
	for _, o := range occupants {
		if o == user {
			return true
		}
	}
	return false
}

// appendUnique returns occupants plus user.  The dedup guard keeps the
// fallback branch from re-appending an identity that is already present.
func appendUnique(occupants []string, user string) []string {
	if contains(occupants, user) {
		return occupants
	}
	out := make([]string, 0, len(occupants)+1)
	out = append(out, occupants...)
	return append(out, user)
}

// remove returns occupants minus user, keeping the order of the rest.
func remove(occupants []string, user string) []string {
	out := make([]string, 0, len(occupants))
	for _, o := range occupants {
		if o != user {
			out = append(out, o)
		}
	}
	return out
}
