package session

import (
	"errors"
	"math/rand/v2"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var (
	ErrPlayerExists   = errors.New("player already exists")
	ErrPlayerNotFound = errors.New("player not found")
)

// Palette is the fixed set of identity colors; a ColorID indexes into it.
var Palette = []string{"red", "green", "blue", "yellow", "magenta", "cyan", "orange", "white"}

// Rand is the random source used for color assignment.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Player is one connected session, identified by its remote address.
type Player struct {
	ID           uuid.UUID
	Addr         netip.AddrPort
	Name         string
	ColorID      uint8
	Admin        bool
	Spectator    bool
	JoinedAt     time.Time
	LastActivity time.Time

	limiter *rate.Limiter
}

// Allow reports whether the session may send another packet at now.
// Sessions without a limiter are never throttled.
func (p *Player) Allow(now time.Time) bool {
	if p.limiter == nil {
		return true
	}
	return p.limiter.AllowN(now, 1)
}

// Info returns a copy of the player's public fields.
func (p *Player) Info() PlayerInfo {
	return PlayerInfo{
		ID:           p.ID.String(),
		Address:      p.Addr.String(),
		Name:         p.Name,
		ColorID:      p.ColorID,
		Color:        Palette[int(p.ColorID)%len(Palette)],
		Admin:        p.Admin,
		Spectator:    p.Spectator,
		JoinedAt:     p.JoinedAt,
		LastActivity: p.LastActivity,
	}
}

// PlayerInfo is an immutable view of a session for monitoring
type PlayerInfo struct {
	ID           string    `json:"id"`
	Address      string    `json:"address"`
	Name         string    `json:"name"`
	ColorID      uint8     `json:"color_id"`
	Color        string    `json:"color"`
	Admin        bool      `json:"admin"`
	Spectator    bool      `json:"spectator"`
	JoinedAt     time.Time `json:"joined_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Registry is the table of connected players in join order.
// It is owned by the tick goroutine and is not safe for concurrent use.
type Registry struct {
	players []*Player
	byAddr  map[netip.AddrPort]*Player

	rng   Rand
	limit rate.Limit
	burst int
}

// Option configures a Registry.
type Option func(*Registry)

// WithRand sets the random source used for color assignment.
func WithRand(rng Rand) Option {
	return func(r *Registry) {
		r.rng = rng
	}
}

// WithRateLimit gives every new session a token bucket of the given rate and burst.
// A zero limit disables throttling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(r *Registry) {
		r.limit = rate.Limit(perSecond)
		r.burst = burst
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		byAddr: make(map[netip.AddrPort]*Player),
		rng:    globalRand{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add creates a session for addr. The first session in an empty registry is admin.
func (r *Registry) Add(addr netip.AddrPort, name string, now time.Time) (*Player, error) {
	if _, exists := r.byAddr[addr]; exists {
		return nil, ErrPlayerExists
	}

	p := &Player{
		ID:           uuid.New(),
		Addr:         addr,
		Name:         name,
		ColorID:      uint8(r.rng.IntN(len(Palette))),
		Admin:        len(r.players) == 0,
		JoinedAt:     now,
		LastActivity: now,
	}
	if r.limit > 0 {
		p.limiter = rate.NewLimiter(r.limit, r.burst)
	}

	r.players = append(r.players, p)
	r.byAddr[addr] = p
	return p, nil
}

// Get returns the session for addr.
func (r *Registry) Get(addr netip.AddrPort) (*Player, bool) {
	p, ok := r.byAddr[addr]
	return p, ok
}

// GetByID returns the session with the given id.
func (r *Registry) GetByID(id uuid.UUID) (*Player, bool) {
	for _, p := range r.players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// FindByName returns the first session in join order with an exactly matching name.
func (r *Registry) FindByName(name string) (*Player, bool) {
	for _, p := range r.players {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Remove deletes the session for addr. If it held admin and sessions remain,
// the first remaining session is promoted and returned as promoted.
func (r *Registry) Remove(addr netip.AddrPort) (removed, promoted *Player, err error) {
	removed, ok := r.byAddr[addr]
	if !ok {
		return nil, nil, ErrPlayerNotFound
	}

	delete(r.byAddr, addr)
	for i, p := range r.players {
		if p == removed {
			r.players = append(r.players[:i], r.players[i+1:]...)
			break
		}
	}

	if removed.Admin && len(r.players) > 0 {
		promoted = r.players[0]
		promoted.Admin = true
	}
	return removed, promoted, nil
}

// Touch refreshes the liveness timestamp of addr. It reports whether the session exists.
func (r *Registry) Touch(addr netip.AddrPort, now time.Time) bool {
	p, ok := r.byAddr[addr]
	if !ok {
		return false
	}
	p.LastActivity = now
	return true
}

// Expired returns the sessions whose last activity is older than timeout.
func (r *Registry) Expired(now time.Time, timeout time.Duration) []*Player {
	var expired []*Player
	for _, p := range r.players {
		if now.Sub(p.LastActivity) > timeout {
			expired = append(expired, p)
		}
	}
	return expired
}

// All returns the sessions in join order. The slice is a copy; the players are not.
func (r *Registry) All() []*Player {
	out := make([]*Player, len(r.players))
	copy(out, r.players)
	return out
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	return len(r.players)
}

// ActiveCount returns the number of sessions not in spectator mode.
func (r *Registry) ActiveCount() int {
	n := 0
	for _, p := range r.players {
		if !p.Spectator {
			n++
		}
	}
	return n
}

// Snapshot returns public copies of every session in join order.
func (r *Registry) Snapshot() []PlayerInfo {
	out := make([]PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.Info())
	}
	return out
}
