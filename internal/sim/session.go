package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"trafficsim/internal/config"
	"trafficsim/internal/payload"
	"trafficsim/internal/profile"
)

// State is the session lifecycle: Created -> Active -> Terminated.
type State int

const (
	StateCreated State = iota
	StateActive
	StateTerminated
)

// Session is one simulated user: a bounded sequence of requests with a
// consistent identity. Owned exclusively by a single worker; nothing in
// here needs locking.
type Session struct {
	ID        string
	UserID    string
	UserType  config.UserType
	Region    config.Region
	UserAgent string
	IPAddress string

	budget            int
	requestsMade      int
	lastProductViewed int
	state             State

	rng *rand.Rand
}

// NewSession draws a user type and region, derives the identity fields
// and fixes the request budget. The budget never changes afterwards.
func NewSession(catalog *profile.Catalog, provider *payload.Provider, rng *rand.Rand) *Session {
	id := uuid.New().String()
	ut := catalog.SelectUserType(rng)
	region := catalog.SelectRegion(rng)

	minReq, maxReq := ut.RequestsPerSession[0], ut.RequestsPerSession[1]

	return &Session{
		ID:        id,
		UserID:    UserIDFor(id),
		UserType:  ut,
		Region:    region,
		UserAgent: provider.UserAgent(rng),
		IPAddress: provider.IPForRegion(region.IPRanges, rng),
		budget:    minReq + rng.Intn(maxReq-minReq+1),
		state:     StateCreated,
		rng:       rng,
	}
}

// UserIDFor derives the synthetic user id from a session id. The
// mapping is deterministic so repeated lookups for the same session are
// idempotent.
func UserIDFor(sessionID string) string {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return fmt.Sprintf("user_%04d", 1000+h.Sum32()%9000)
}

// Headers returns the identity header set sent with every request.
func (s *Session) Headers() map[string]string {
	return map[string]string{
		"User-Agent":      s.UserAgent,
		"X-Session-ID":    s.ID,
		"X-User-ID":       s.UserID,
		"X-Forwarded-For": s.IPAddress,
	}
}

// Begin transitions Created -> Active.
func (s *Session) Begin() {
	if s.state == StateCreated {
		s.state = StateActive
	}
}

// Terminate is final; called on budget exhaustion or shutdown.
func (s *Session) Terminate() {
	s.state = StateTerminated
}

func (s *Session) State() State {
	return s.state
}

// Exhausted reports whether the request budget is spent.
func (s *Session) Exhausted() bool {
	return s.requestsMade >= s.budget
}

// Budget returns the fixed per-session request budget.
func (s *Session) Budget() int {
	return s.budget
}

// RequestsMade returns how many requests this session has issued.
func (s *Session) RequestsMade() int {
	return s.requestsMade
}

// ThinkTime draws the pause before the next request from the user
// type's range.
func (s *Session) ThinkTime() time.Duration {
	min, max := s.UserType.ThinkTimeSeconds[0], s.UserType.ThinkTimeSeconds[1]
	secs := min + s.rng.Float64()*(max-min)
	return time.Duration(secs * float64(time.Second))
}

// ObserveRequest counts one issued request and updates the behavioral
// hints from the resolved path.
func (s *Session) ObserveRequest(path string) {
	s.requestsMade++

	// Remember the last product looked at for potential correlation.
	if idx := strings.Index(path, "/products/"); idx >= 0 {
		rest := path[idx+len("/products/"):]
		if end := strings.IndexByte(rest, '/'); end >= 0 {
			rest = rest[:end]
		}
		if id, err := strconv.Atoi(rest); err == nil {
			s.lastProductViewed = id
		}
	}
}

// LastProductViewed returns the last product id seen, 0 if none.
func (s *Session) LastProductViewed() int {
	return s.lastProductViewed
}
