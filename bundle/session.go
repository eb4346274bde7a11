package bundle

import (
	"sync"
	"time"
)

// Step identifies a purchase-conversation step.
type Step string

const (
	// StepIdle indicates there is no purchase in progress for the buyer.
	StepIdle Step = "idle"
	// StepChoosingPackage waits for a package button press.
	StepChoosingPackage Step = "choosing_package"
	// StepSelectingQuantity waits for a positive integer message.
	StepSelectingQuantity Step = "selecting_quantity"
	// StepSubmittingPayment waits for a payment reference message.
	StepSubmittingPayment Step = "submitting_payment"
)

// Session stores one buyer's progress through the purchase
// conversation. It exists from package selection until payment
// submission, cancellation, or TTL eviction.
type Session struct {
	Step      Step
	PackageID string
	Quantity  int
	Total     int
	UpdatedAt time.Time
}

// Sessions is a mutex-guarded map of buyer ID to purchase session.
// A zero TTL disables eviction, which reproduces the reference
// behaviour of keeping abandoned sessions forever.
type Sessions struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[int64]*Session
}

// NewSessions constructs an empty session table with the given TTL.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		ttl: ttl,
		m:   make(map[int64]*Session),
	}
}

// Begin starts a fresh session at the package-choosing step, replacing
// any previous progress.
func (s *Sessions) Begin(buyerID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[buyerID] = &Session{Step: StepChoosingPackage, UpdatedAt: time.Now()}
}

// Get returns a copy of the buyer's session, if one is active.
func (s *Sessions) Get(buyerID int64) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.m[buyerID]
	if !ok || s.expired(sess, time.Now()) {
		return Session{Step: StepIdle}, false
	}
	return *sess, true
}

// Step returns the buyer's current step, StepIdle when no session exists.
func (s *Sessions) Step(buyerID int64) Step {
	sess, ok := s.Get(buyerID)
	if !ok {
		return StepIdle
	}
	return sess.Step
}

// InProgress reports whether the buyer has an active purchase session.
func (s *Sessions) InProgress(buyerID int64) bool {
	_, ok := s.Get(buyerID)
	return ok
}

// Update mutates the buyer's session in place and refreshes its
// timestamp. It reports whether a session existed.
func (s *Sessions) Update(buyerID int64, fn func(*Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[buyerID]
	if !ok || s.expired(sess, time.Now()) {
		return false
	}
	fn(sess)
	sess.UpdatedAt = time.Now()
	return true
}

// Clear discards the buyer's session.
func (s *Sessions) Clear(buyerID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, buyerID)
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Sweep evicts sessions idle past the TTL and returns how many were
// removed. It is a no-op when TTL is zero.
func (s *Sessions) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, sess := range s.m {
		if s.expired(sess, now) {
			delete(s.m, id)
			evicted++
		}
	}
	return evicted
}

func (s *Sessions) expired(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.UpdatedAt) > s.ttl
}
