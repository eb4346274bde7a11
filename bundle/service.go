package bundle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"bundlebot/core/logger"
)

// Sentinel errors of the purchase and review flows. User-input errors
// are recovered by re-prompting in the same step and are never logged
// as faults.
var (
	ErrNoSession       = errors.New("no purchase in progress")
	ErrUnknownPackage  = errors.New("unknown package")
	ErrInvalidQuantity = errors.New("quantity must be a positive number")
	ErrEmptyReference  = errors.New("payment reference must not be empty")
	ErrEmptyNotice     = errors.New("offline notice must not be empty")
	ErrOrderNotPending = errors.New("order not found or already processed")
)

// MaxQuantity bounds a single order so price and entitlement arithmetic
// stays well inside integer range no matter what the buyer types.
const MaxQuantity = 1000

// Config carries the boot-time settings of the order service.
type Config struct {
	// Admins is the static allow-list receiving review requests.
	Admins []int64
	// SessionTTL evicts idle purchase sessions; zero keeps them forever.
	SessionTTL time.Duration
	// SweepInterval controls how often idle sessions are evicted.
	// Defaults to one minute when SessionTTL is set.
	SweepInterval time.Duration
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Service owns the order lifecycle: buyer purchase sessions, the order
// map, the availability gate with its deferred-notification queue, and
// the notification fan-out. All shared aggregates are mutex-guarded so
// concurrent buyers and admins are serialized by state guards, not by
// timing. Every mutation is written back to the store before any
// notification goes out.
type Service struct {
	mu       sync.Mutex
	catalog  *Catalog
	store    Store
	notifier Notifier
	admins   []int64
	sessions *Sessions
	clock    func() time.Time

	orders       map[string]Order
	offlineQueue map[int64]struct{}
	status       Status

	stop     chan struct{}
	stopOnce sync.Once
}

// NewService loads the last durable snapshot and builds the service.
func NewService(ctx context.Context, cfg Config, catalog *Catalog, st Store, notifier Notifier) (*Service, error) {
	if catalog == nil {
		return nil, fmt.Errorf("service: nil catalog")
	}
	if st == nil {
		return nil, fmt.Errorf("service: nil store")
	}
	if notifier == nil {
		return nil, fmt.Errorf("service: nil notifier")
	}

	snap, err := st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: load snapshot: %w", err)
	}
	if snap.Orders == nil {
		snap.Orders = make(map[string]Order)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &Service{
		catalog:      catalog,
		store:        st,
		notifier:     notifier,
		admins:       append([]int64(nil), cfg.Admins...),
		sessions:     NewSessions(cfg.SessionTTL),
		clock:        clock,
		orders:       snap.Orders,
		offlineQueue: make(map[int64]struct{}, len(snap.OfflineQueue)),
		status:       snap.Status,
		stop:         make(chan struct{}),
	}
	for _, id := range snap.OfflineQueue {
		s.offlineQueue[id] = struct{}{}
	}

	logger.Info(ctx, "service.orders", "state.loaded",
		slog.Int("orders", len(s.orders)),
		slog.Int("offline_queue", len(s.offlineQueue)),
		slog.Bool("online", s.status.Online),
	)

	if cfg.SessionTTL > 0 {
		interval := cfg.SweepInterval
		if interval <= 0 {
			interval = time.Minute
		}
		go s.sweepLoop(interval)
	}
	return s, nil
}

// Close stops the session sweeper. The store is closed by its owner.
func (s *Service) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Service) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			if evicted := s.sessions.Sweep(now); evicted > 0 {
				logger.Debug(context.Background(), "service.orders", "session.sweep",
					slog.Int("evicted", evicted),
				)
			}
		}
	}
}

// persist writes the full in-memory state back to the store. Callers
// must hold s.mu.
func (s *Service) persist(ctx context.Context) error {
	snap := Snapshot{
		Orders:       make(map[string]Order, len(s.orders)),
		OfflineQueue: make([]int64, 0, len(s.offlineQueue)),
		Status:       s.status,
	}
	for id, o := range s.orders {
		snap.Orders[id] = o
	}
	for id := range s.offlineQueue {
		snap.OfflineQueue = append(snap.OfflineQueue, id)
	}
	sort.Slice(snap.OfflineQueue, func(i, j int) bool { return snap.OfflineQueue[i] < snap.OfflineQueue[j] })
	return s.store.Save(ctx, snap)
}

// StartResult tells the transport how to answer a start request.
type StartResult struct {
	// Offline is set when the availability gate short-circuited the
	// start; Notice carries the text to show. No session exists then.
	Offline bool
	Notice  string
	// Packages are the choices to offer when online.
	Packages []Package
}

// StartPurchase begins a purchase conversation, or short-circuits into
// the deferred-notification queue while offline. Repeated offline
// starts from the same buyer do not duplicate the queue entry.
func (s *Service) StartPurchase(ctx context.Context, buyer Buyer) (StartResult, error) {
	s.mu.Lock()
	if !s.status.Online {
		notice := s.status.OfflineNotice
		if _, queued := s.offlineQueue[buyer.ID]; !queued {
			s.offlineQueue[buyer.ID] = struct{}{}
			if err := s.persist(ctx); err != nil {
				delete(s.offlineQueue, buyer.ID)
				s.mu.Unlock()
				return StartResult{}, fmt.Errorf("record offline attempt: %w", err)
			}
		}
		s.mu.Unlock()
		logger.Info(ctx, "service.orders", "start.offline",
			slog.Int64("buyer_id", buyer.ID),
		)
		return StartResult{Offline: true, Notice: notice}, nil
	}
	s.mu.Unlock()

	s.sessions.Begin(buyer.ID)
	logger.Debug(ctx, "service.orders", "session.begin",
		slog.Int64("buyer_id", buyer.ID),
	)
	return StartResult{Packages: s.catalog.All()}, nil
}

// ChoosePackage records the buyer's package selection and advances the
// session to quantity entry.
func (s *Service) ChoosePackage(ctx context.Context, buyerID int64, packageID string) (Package, error) {
	if s.sessions.Step(buyerID) != StepChoosingPackage {
		return Package{}, ErrNoSession
	}
	pkg, ok := s.catalog.Get(packageID)
	if !ok {
		return Package{}, fmt.Errorf("%w: %s", ErrUnknownPackage, packageID)
	}
	s.sessions.Update(buyerID, func(sess *Session) {
		sess.Step = StepSelectingQuantity
		sess.PackageID = pkg.ID
	})
	logger.Debug(ctx, "service.orders", "session.package",
		slog.Int64("buyer_id", buyerID),
		slog.String("package", pkg.ID),
	)
	return pkg, nil
}

// QuantityResult carries the confirmed selection back to the transport
// so it can render payment instructions.
type QuantityResult struct {
	Package  Package
	Quantity int
	Total    int
}

// EnterQuantity validates the buyer's quantity input. Non-numeric,
// non-positive, or over-MaxQuantity input returns ErrInvalidQuantity
// and leaves the session in the same step for a re-prompt.
func (s *Service) EnterQuantity(ctx context.Context, buyerID int64, input string) (QuantityResult, error) {
	sess, ok := s.sessions.Get(buyerID)
	if !ok || sess.Step != StepSelectingQuantity {
		return QuantityResult{}, ErrNoSession
	}
	quantity, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || quantity <= 0 || quantity > MaxQuantity {
		return QuantityResult{}, ErrInvalidQuantity
	}
	pkg, ok := s.catalog.Get(sess.PackageID)
	if !ok {
		return QuantityResult{}, fmt.Errorf("%w: %s", ErrUnknownPackage, sess.PackageID)
	}
	total := pkg.Total(quantity)
	s.sessions.Update(buyerID, func(sess *Session) {
		sess.Step = StepSubmittingPayment
		sess.Quantity = quantity
		sess.Total = total
	})
	logger.Debug(ctx, "service.orders", "session.quantity",
		slog.Int64("buyer_id", buyerID),
		slog.Int("quantity", quantity),
		slog.Int("total", total),
	)
	return QuantityResult{Package: pkg, Quantity: quantity, Total: total}, nil
}

// SubmitPayment accepts the buyer's payment reference, creates and
// persists the pending order, ends the session, and fans a review
// request out to every admin. The order is durably committed before any
// notification; admin delivery failures are logged and never undo it.
func (s *Service) SubmitPayment(ctx context.Context, buyer Buyer, reference string) (Order, error) {
	sess, ok := s.sessions.Get(buyer.ID)
	if !ok || sess.Step != StepSubmittingPayment {
		return Order{}, ErrNoSession
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Order{}, ErrEmptyReference
	}
	pkg, ok := s.catalog.Get(sess.PackageID)
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrUnknownPackage, sess.PackageID)
	}

	order := NewOrder(buyer, pkg, sess.Quantity, reference, s.clock())

	s.mu.Lock()
	s.orders[order.ID] = order
	if err := s.persist(ctx); err != nil {
		delete(s.orders, order.ID)
		s.mu.Unlock()
		// Session stays in the payment step so the buyer can resend.
		return Order{}, fmt.Errorf("persist order: %w", err)
	}
	s.mu.Unlock()
	s.sessions.Clear(buyer.ID)

	logger.Info(ctx, "service.orders", "order.created",
		slog.String("order_id", order.ID),
		slog.Int64("buyer_id", buyer.ID),
		slog.String("package", order.PackageID),
		slog.Int("quantity", order.Quantity),
		slog.Int("total", order.TotalPrice),
	)

	_ = notifyEach(ctx, s.notifier, s.admins, reviewMessage("NEW ORDER", order, pkg.Label))
	return order, nil
}

// CancelPurchase discards the buyer's session without side effects and
// reports whether one existed.
func (s *Service) CancelPurchase(ctx context.Context, buyerID int64) bool {
	had := s.sessions.InProgress(buyerID)
	s.sessions.Clear(buyerID)
	if had {
		logger.Debug(ctx, "service.orders", "session.cancel",
			slog.Int64("buyer_id", buyerID),
		)
	}
	return had
}

// InPurchase reports whether the buyer has an active purchase session.
func (s *Service) InPurchase(buyerID int64) bool {
	return s.sessions.InProgress(buyerID)
}

// SessionStep exposes the buyer's current conversation step.
func (s *Service) SessionStep(buyerID int64) Step {
	return s.sessions.Step(buyerID)
}

// Resolution reports the outcome of an admin decision.
type Resolution struct {
	Order    Order
	Approved bool
	// ExpiresAt and Hours are set on approval.
	ExpiresAt time.Time
	Hours     int
	// NotifyErr is non-nil when the buyer could not be notified; the
	// resolution itself is already durably committed.
	NotifyErr error
}

// ResolveOrder applies an admin's approve/reject decision. The
// pending-status guard makes stale or duplicated button presses a
// no-op: ErrOrderNotPending is returned for a missing or already
// resolved order and nothing changes.
func (s *Service) ResolveOrder(ctx context.Context, adminID int64, orderID string, approve bool) (Resolution, error) {
	s.mu.Lock()
	order, ok := s.orders[orderID]
	if !ok || order.Status != OrderPending {
		s.mu.Unlock()
		return Resolution{}, ErrOrderNotPending
	}
	prev := order
	now := s.clock()
	order.ResolvedAt = &now
	order.ResolvedBy = adminID
	if approve {
		order.Status = OrderApproved
	} else {
		order.Status = OrderRejected
	}
	s.orders[orderID] = order
	if err := s.persist(ctx); err != nil {
		s.orders[orderID] = prev
		s.mu.Unlock()
		return Resolution{}, fmt.Errorf("persist resolution: %w", err)
	}
	s.mu.Unlock()

	res := Resolution{Order: order, Approved: approve}
	var msg Message
	if approve {
		pkg, ok := s.catalog.Get(order.PackageID)
		if !ok {
			// Package vanished from configuration between restarts;
			// the approval stands with a zero-length entitlement.
			logger.Warn(ctx, "service.orders", "resolve.package_missing",
				slog.String("order_id", orderID),
				slog.String("package", order.PackageID),
			)
		}
		res.Hours = pkg.Hours * order.Quantity
		res.ExpiresAt = now.Add(pkg.AccessDuration(order.Quantity))
		msg = approvedMessage(order, res.ExpiresAt, res.Hours)
	} else {
		msg = rejectedMessage(order)
	}

	logger.Info(ctx, "service.orders", "order.resolved",
		slog.String("order_id", orderID),
		slog.String("status", string(order.Status)),
		slog.Int64("admin_id", adminID),
	)

	if err := s.notifier.Notify(ctx, order.BuyerID, msg); err != nil {
		logger.Warn(ctx, "service.notify", "notify.fail",
			slog.Int64("recipient", order.BuyerID),
			slog.String("order_id", orderID),
			slog.String("err", err.Error()),
		)
		res.NotifyErr = err
	}
	return res, nil
}

// ToggleResult reports the new availability state after a toggle.
type ToggleResult struct {
	Online bool
	// Notified is how many queued buyers were told the service is back.
	Notified int
}

// ToggleStatus flips the availability gate. Coming back online drains
// the deferred-notification queue: the new state is persisted first,
// then every queued buyer is notified exactly once; per-recipient
// failures are logged and never restore the queue. A crash between the
// persisted clear and the fan-out can drop notices, never deliver them
// twice.
func (s *Service) ToggleStatus(ctx context.Context) (ToggleResult, error) {
	s.mu.Lock()
	prevStatus := s.status
	s.status.Online = !s.status.Online

	var drained []int64
	if s.status.Online {
		drained = make([]int64, 0, len(s.offlineQueue))
		for id := range s.offlineQueue {
			drained = append(drained, id)
		}
		sort.Slice(drained, func(i, j int) bool { return drained[i] < drained[j] })
		s.offlineQueue = make(map[int64]struct{})
	}

	if err := s.persist(ctx); err != nil {
		s.status = prevStatus
		for _, id := range drained {
			s.offlineQueue[id] = struct{}{}
		}
		s.mu.Unlock()
		return ToggleResult{}, fmt.Errorf("persist status: %w", err)
	}
	online := s.status.Online
	s.mu.Unlock()

	logger.Info(ctx, "service.orders", "status.toggled",
		slog.Bool("online", online),
		slog.Int("drained", len(drained)),
	)

	if online && len(drained) > 0 {
		_ = notifyEach(ctx, s.notifier, drained, backOnlineMessage())
	}
	return ToggleResult{Online: online, Notified: len(drained)}, nil
}

// SetOfflineNotice replaces the text shown to buyers while offline.
func (s *Service) SetOfflineNotice(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyNotice
	}
	s.mu.Lock()
	prev := s.status.OfflineNotice
	s.status.OfflineNotice = text
	if err := s.persist(ctx); err != nil {
		s.status.OfflineNotice = prev
		s.mu.Unlock()
		return fmt.Errorf("persist offline notice: %w", err)
	}
	s.mu.Unlock()
	logger.Info(ctx, "service.orders", "notice.updated")
	return nil
}

// Online reports the availability flag.
func (s *Service) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.Online
}

// OfflineNotice returns the current offline notice text.
func (s *Service) OfflineNotice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.OfflineNotice
}

// Order returns a copy of the order with the given identifier.
func (s *Service) Order(id string) (Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

// PendingOrders returns all orders awaiting review, oldest first.
func (s *Service) PendingOrders() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []Order
	for _, o := range s.orders {
		if o.Status == OrderPending {
			pending = append(pending, o)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending
}

// PendingReviews renders every pending order with fresh approve/reject
// buttons, for the admin listing command.
func (s *Service) PendingReviews() []Message {
	pending := s.PendingOrders()
	msgs := make([]Message, 0, len(pending))
	for _, o := range pending {
		label := o.PackageID
		if pkg, ok := s.catalog.Get(o.PackageID); ok {
			label = pkg.Label
		}
		msgs = append(msgs, reviewMessage("PENDING ORDER", o, label))
	}
	return msgs
}

// IsAdmin reports whether the identity is on the static allow-list.
func (s *Service) IsAdmin(id int64) bool {
	for _, admin := range s.admins {
		if admin == id {
			return true
		}
	}
	return false
}

// Admins returns the configured admin identities.
func (s *Service) Admins() []int64 {
	return append([]int64(nil), s.admins...)
}
