// Package verification issues and checks short-lived numeric codes used for
// password recovery. Codes live in process memory only.
package verification

import (
	"context"
	"crypto/rand"
	"fmt"
	"hash/fnv"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultTTL        = 5 * time.Minute
	DefaultCodeLength = 4

	shardCount = 32
)

// CodeGenerator returns a numeric code of exactly n digits.
type CodeGenerator func(n int) (string, error)

// RandomDigits draws each digit from crypto/rand.
func RandomDigits(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		num, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate random digit: %w", err)
		}
		digits[i] = byte('0' + num.Int64())
	}
	return string(digits), nil
}

// Code is a pending recovery code.
type Code struct {
	Email     string
	Code      string
	ExpiresAt time.Time
}

// Claim is a code taken out of play by Claim until it is redeemed or
// released.
type Claim struct {
	Code
	seq uint64
}

type entry struct {
	Code
	seq     uint64
	claimed bool
}

type shard struct {
	mu      sync.Mutex
	seq     uint64
	pending map[string]entry
}

// Registry holds at most one pending code per email. Each email maps to one
// shard so operations on the same email are serialized while unrelated emails
// rarely contend.
type Registry struct {
	shards   [shardCount]shard
	clock    clockwork.Clock
	ttl      time.Duration
	length   int
	generate CodeGenerator
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the time source.
func WithClock(c clockwork.Clock) Option { return func(r *Registry) { r.clock = c } }

// WithTTL sets how long an issued code stays valid.
func WithTTL(d time.Duration) Option { return func(r *Registry) { r.ttl = d } }

// WithCodeLength sets the number of digits per code.
func WithCodeLength(n int) Option { return func(r *Registry) { r.length = n } }

// WithGenerator replaces the random source.
func WithGenerator(g CodeGenerator) Option { return func(r *Registry) { r.generate = g } }

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		clock:    clockwork.NewRealClock(),
		ttl:      DefaultTTL,
		length:   DefaultCodeLength,
		generate: RandomDigits,
	}
	for _, o := range opts {
		o(r)
	}
	for i := range r.shards {
		r.shards[i].pending = make(map[string]entry)
	}
	return r
}

// NormalizeEmail trims and lower-cases an address for use as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *Registry) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &r.shards[h.Sum32()%shardCount]
}

// Issue generates a new code for email, replacing any pending one.
func (r *Registry) Issue(email string) (Code, error) {
	key := NormalizeEmail(email)
	code, err := r.generate(r.length)
	if err != nil {
		return Code{}, err
	}
	if len(code) != r.length {
		return Code{}, fmt.Errorf("generator returned %d digits, want %d", len(code), r.length)
	}
	c := Code{Email: key, Code: code, ExpiresAt: r.clock.Now().Add(r.ttl)}

	s := r.shardFor(key)
	s.mu.Lock()
	s.seq++
	s.pending[key] = entry{Code: c, seq: s.seq}
	s.mu.Unlock()
	return c, nil
}

// Validate reports whether code is the pending, unexpired code for email.
// It never changes state. A claimed code is not valid.
func (r *Registry) Validate(email, code string) bool {
	key := NormalizeEmail(email)
	s := r.shardFor(key)
	s.mu.Lock()
	e, ok := s.pending[key]
	s.mu.Unlock()
	return ok && r.usable(e, code)
}

func (r *Registry) usable(e entry, code string) bool {
	return !e.claimed && e.Code.Code == code && !r.clock.Now().After(e.ExpiresAt)
}

// Claim checks code like Validate and, if it is valid, takes it out of play
// in the same critical section. At most one caller holds a claim on a code.
// The holder must either Redeem or Release it.
func (r *Registry) Claim(email, code string) (Claim, bool) {
	key := NormalizeEmail(email)
	s := r.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pending[key]
	if !ok || !r.usable(e, code) {
		return Claim{}, false
	}
	e.claimed = true
	s.pending[key] = e
	return Claim{Code: e.Code, seq: e.seq}, true
}

// Redeem removes a claimed code for good. It is a no-op when a newer code
// was issued after the claim.
func (r *Registry) Redeem(c Claim) {
	s := r.shardFor(c.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.pending[c.Email]; ok && e.seq == c.seq {
		delete(s.pending, c.Email)
	}
}

// Release puts a claimed code back in play so it can be retried. It returns
// false when the code was replaced or swept in the meantime.
func (r *Registry) Release(c Claim) bool {
	s := r.shardFor(c.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pending[c.Email]
	if !ok || e.seq != c.seq {
		return false
	}
	e.claimed = false
	s.pending[c.Email] = e
	return true
}

// Consume removes the pending code for email.
func (r *Registry) Consume(email string) {
	key := NormalizeEmail(email)
	s := r.shardFor(key)
	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()
}

// Len returns the number of pending codes, expired or claimed included.
func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		n += len(s.pending)
		s.mu.Unlock()
	}
	return n
}

// Sweep evicts expired codes and returns how many were removed.
func (r *Registry) Sweep() int {
	now := r.clock.Now()
	removed := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for k, e := range s.pending {
			if now.After(e.ExpiresAt) {
				delete(s.pending, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := r.clock.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Chan():
			r.Sweep()
		}
	}
}
