package bundle

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	snap     Snapshot
	saves    int
	failSave error
}

func newFakeStore() *fakeStore {
	return &fakeStore{snap: EmptySnapshot()}
}

func (f *fakeStore) Load(ctx context.Context) (Snapshot, error) {
	return f.snap, nil
}

func (f *fakeStore) Save(ctx context.Context, snap Snapshot) error {
	if f.failSave != nil {
		return f.failSave
	}
	f.snap = snap
	f.saves++
	return nil
}

func (f *fakeStore) Close() error { return nil }

type delivery struct {
	recipient int64
	msg       Message
}

type fakeNotifier struct {
	sent    []delivery
	failFor map[int64]error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{failFor: make(map[int64]error)}
}

func (f *fakeNotifier) Notify(ctx context.Context, recipient int64, msg Message) error {
	if err := f.failFor[recipient]; err != nil {
		return err
	}
	f.sent = append(f.sent, delivery{recipient: recipient, msg: msg})
	return nil
}

func (f *fakeNotifier) recipients() []int64 {
	ids := make([]int64, 0, len(f.sent))
	for _, d := range f.sent {
		ids = append(ids, d.recipient)
	}
	return ids
}

type fixture struct {
	svc      *Service
	store    *fakeStore
	notifier *fakeNotifier
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    newFakeStore(),
		notifier: newFakeNotifier(),
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	catalog, err := NewCatalog(DefaultPackages())
	require.NoError(t, err)
	f.svc, err = NewService(context.Background(), Config{
		Admins: []int64{100, 200},
		Clock:  func() time.Time { return f.now },
	}, catalog, f.store, f.notifier)
	require.NoError(t, err)
	t.Cleanup(f.svc.Close)
	return f
}

func (f *fixture) submitOrder(t *testing.T, buyer Buyer, pkgID string, qty string, ref string) Order {
	t.Helper()
	ctx := context.Background()
	res, err := f.svc.StartPurchase(ctx, buyer)
	require.NoError(t, err)
	require.False(t, res.Offline)
	_, err = f.svc.ChoosePackage(ctx, buyer.ID, pkgID)
	require.NoError(t, err)
	_, err = f.svc.EnterQuantity(ctx, buyer.ID, qty)
	require.NoError(t, err)
	order, err := f.svc.SubmitPayment(ctx, buyer, ref)
	require.NoError(t, err)
	return order
}

func TestPurchaseHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := Buyer{ID: 1, Name: "Alice", Username: "alice"}

	res, err := f.svc.StartPurchase(ctx, buyer)
	require.NoError(t, err)
	assert.False(t, res.Offline)
	assert.Len(t, res.Packages, 2)
	assert.Equal(t, StepChoosingPackage, f.svc.SessionStep(buyer.ID))

	pkg, err := f.svc.ChoosePackage(ctx, buyer.ID, "3hr")
	require.NoError(t, err)
	assert.Equal(t, "3 hours", pkg.Label)

	qres, err := f.svc.EnterQuantity(ctx, buyer.ID, "2")
	require.NoError(t, err)
	assert.Equal(t, 2, qres.Quantity)
	assert.Equal(t, 160, qres.Total)

	order, err := f.svc.SubmitPayment(ctx, buyer, "MPESA123")
	require.NoError(t, err)
	assert.Equal(t, OrderPending, order.Status)
	assert.Equal(t, 160, order.TotalPrice)
	assert.Equal(t, "MPESA123", order.PaymentRef)

	// Session ends with submission.
	assert.False(t, f.svc.InPurchase(buyer.ID))

	// Order persisted before notifications went out.
	saved, ok := f.store.snap.Orders[order.ID]
	require.True(t, ok)
	assert.Equal(t, OrderPending, saved.Status)

	// Every admin got the review request with approve/reject buttons.
	assert.ElementsMatch(t, []int64{100, 200}, f.notifier.recipients())
	msg := f.notifier.sent[0].msg
	require.Len(t, msg.Buttons, 1)
	require.Len(t, msg.Buttons[0], 2)
	assert.Equal(t, ActionApprove, msg.Buttons[0][0].Action)
	assert.Equal(t, order.ID, msg.Buttons[0][0].Data)
	assert.Equal(t, ActionReject, msg.Buttons[0][1].Action)
	assert.Contains(t, msg.Text, "NEW ORDER")
	assert.Contains(t, msg.Text, "KSh 160")
}

func TestAdminDeliveryFailureDoesNotUndoOrder(t *testing.T) {
	f := newFixture(t)
	f.notifier.failFor[100] = errors.New("blocked")
	buyer := Buyer{ID: 2, Name: "Bob"}

	order := f.submitOrder(t, buyer, "24hr", "1", "TX1")

	_, ok := f.store.snap.Orders[order.ID]
	assert.True(t, ok)
	// The other admin still got the request.
	assert.Equal(t, []int64{200}, f.notifier.recipients())
}

func TestInvalidQuantityReprompts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := Buyer{ID: 3, Name: "Cara"}

	_, err := f.svc.StartPurchase(ctx, buyer)
	require.NoError(t, err)
	_, err = f.svc.ChoosePackage(ctx, buyer.ID, "3hr")
	require.NoError(t, err)

	for _, input := range []string{"abc", "0", "-4", "", "1152921504606846976"} {
		_, err = f.svc.EnterQuantity(ctx, buyer.ID, input)
		assert.ErrorIs(t, err, ErrInvalidQuantity, "input %q", input)
		assert.Equal(t, StepSelectingQuantity, f.svc.SessionStep(buyer.ID))
	}

	// Valid input still works after bad attempts.
	qres, err := f.svc.EnterQuantity(ctx, buyer.ID, " 3 ")
	require.NoError(t, err)
	assert.Equal(t, 240, qres.Total)
}

func TestQuantityUpperBound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := Buyer{ID: 11, Name: "Nia"}

	_, err := f.svc.StartPurchase(ctx, buyer)
	require.NoError(t, err)
	_, err = f.svc.ChoosePackage(ctx, buyer.ID, "3hr")
	require.NoError(t, err)

	_, err = f.svc.EnterQuantity(ctx, buyer.ID, strconv.Itoa(MaxQuantity+1))
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, StepSelectingQuantity, f.svc.SessionStep(buyer.ID))

	// The largest accepted quantity still yields an exact positive total.
	qres, err := f.svc.EnterQuantity(ctx, buyer.ID, strconv.Itoa(MaxQuantity))
	require.NoError(t, err)
	assert.Equal(t, MaxQuantity*80, qres.Total)
	assert.Positive(t, qres.Total)
}

func TestEmptyPaymentReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := Buyer{ID: 4, Name: "Dan"}

	_, err := f.svc.StartPurchase(ctx, buyer)
	require.NoError(t, err)
	_, err = f.svc.ChoosePackage(ctx, buyer.ID, "3hr")
	require.NoError(t, err)
	_, err = f.svc.EnterQuantity(ctx, buyer.ID, "1")
	require.NoError(t, err)

	_, err = f.svc.SubmitPayment(ctx, buyer, "   ")
	assert.ErrorIs(t, err, ErrEmptyReference)
	assert.Equal(t, StepSubmittingPayment, f.svc.SessionStep(buyer.ID))
}

func TestApproveSetsEntitlementExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := Buyer{ID: 5, Name: "Eve"}
	order := f.submitOrder(t, buyer, "3hr", "2", "TX2")
	f.notifier.sent = nil

	f.now = f.now.Add(10 * time.Minute)
	res, err := f.svc.ResolveOrder(ctx, 100, order.ID, true)
	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.Equal(t, 6, res.Hours)
	assert.Equal(t, f.now.Add(6*time.Hour), res.ExpiresAt)
	assert.NoError(t, res.NotifyErr)

	saved := f.store.snap.Orders[order.ID]
	assert.Equal(t, OrderApproved, saved.Status)
	assert.Equal(t, int64(100), saved.ResolvedBy)
	require.NotNil(t, saved.ResolvedAt)
	assert.Equal(t, f.now, *saved.ResolvedAt)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, buyer.ID, f.notifier.sent[0].recipient)
	assert.Contains(t, f.notifier.sent[0].msg.Text, "approved")
	assert.Contains(t, f.notifier.sent[0].msg.Text, "6 hours")
}

func TestRejectNotifiesBuyer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := Buyer{ID: 6, Name: "Finn"}
	order := f.submitOrder(t, buyer, "24hr", "1", "TX3")
	f.notifier.sent = nil

	res, err := f.svc.ResolveOrder(ctx, 200, order.ID, false)
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, OrderRejected, f.store.snap.Orders[order.ID].Status)
	require.Len(t, f.notifier.sent, 1)
	assert.Contains(t, f.notifier.sent[0].msg.Text, "rejected")
}

func TestResolveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.submitOrder(t, Buyer{ID: 7, Name: "Gus"}, "3hr", "1", "TX4")

	_, err := f.svc.ResolveOrder(ctx, 100, order.ID, true)
	require.NoError(t, err)

	// Second press of either button changes nothing.
	_, err = f.svc.ResolveOrder(ctx, 200, order.ID, false)
	assert.ErrorIs(t, err, ErrOrderNotPending)
	assert.Equal(t, OrderApproved, f.store.snap.Orders[order.ID].Status)

	_, err = f.svc.ResolveOrder(ctx, 100, "ORD-missing", true)
	assert.ErrorIs(t, err, ErrOrderNotPending)
}

func TestBuyerNotifyFailureKeepsResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := Buyer{ID: 8, Name: "Hana"}
	order := f.submitOrder(t, buyer, "3hr", "1", "TX5")
	f.notifier.failFor[buyer.ID] = errors.New("chat gone")

	res, err := f.svc.ResolveOrder(ctx, 100, order.ID, true)
	require.NoError(t, err)
	assert.Error(t, res.NotifyErr)
	assert.Equal(t, OrderApproved, f.store.snap.Orders[order.ID].Status)
}

func TestOfflineStartQueuesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ToggleStatus(ctx)
	require.NoError(t, err)
	assert.False(t, f.svc.Online())

	buyer := Buyer{ID: 9, Name: "Ivy"}
	for i := 0; i < 3; i++ {
		res, err := f.svc.StartPurchase(ctx, buyer)
		require.NoError(t, err)
		assert.True(t, res.Offline)
		assert.Equal(t, DefaultOfflineNotice, res.Notice)
	}
	assert.False(t, f.svc.InPurchase(buyer.ID))
	assert.Equal(t, []int64{9}, f.store.snap.OfflineQueue)
}

func TestBackOnlineDrainsQueueExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ToggleStatus(ctx)
	require.NoError(t, err)
	for _, id := range []int64{21, 22, 23} {
		_, err := f.svc.StartPurchase(ctx, Buyer{ID: id})
		require.NoError(t, err)
	}
	f.notifier.failFor[22] = errors.New("blocked")

	res, err := f.svc.ToggleStatus(ctx)
	require.NoError(t, err)
	assert.True(t, res.Online)
	assert.Equal(t, 3, res.Notified)

	// Queue is durably empty even though one delivery failed.
	assert.Empty(t, f.store.snap.OfflineQueue)
	assert.ElementsMatch(t, []int64{21, 23}, f.notifier.recipients())

	// A later offline/online cycle does not re-notify old entries.
	f.notifier.sent = nil
	_, err = f.svc.ToggleStatus(ctx)
	require.NoError(t, err)
	res, err = f.svc.ToggleStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Notified)
	assert.Empty(t, f.notifier.sent)
}

func TestSaveFailureIsNotAcknowledged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := Buyer{ID: 10, Name: "Jo"}

	_, err := f.svc.StartPurchase(ctx, buyer)
	require.NoError(t, err)
	_, err = f.svc.ChoosePackage(ctx, buyer.ID, "3hr")
	require.NoError(t, err)
	_, err = f.svc.EnterQuantity(ctx, buyer.ID, "1")
	require.NoError(t, err)

	f.store.failSave = errors.New("disk full")
	_, err = f.svc.SubmitPayment(ctx, buyer, "TX6")
	require.Error(t, err)

	// No order exists, no admin was notified, and the buyer can retry.
	assert.Empty(t, f.store.snap.Orders)
	assert.Empty(t, f.notifier.sent)
	assert.Equal(t, StepSubmittingPayment, f.svc.SessionStep(buyer.ID))

	f.store.failSave = nil
	order, err := f.svc.SubmitPayment(ctx, buyer, "TX6")
	require.NoError(t, err)
	assert.Equal(t, OrderPending, f.store.snap.Orders[order.ID].Status)
}

func TestToggleSaveFailureRestoresQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ToggleStatus(ctx)
	require.NoError(t, err)
	_, err = f.svc.StartPurchase(ctx, Buyer{ID: 31})
	require.NoError(t, err)

	f.store.failSave = errors.New("disk full")
	_, err = f.svc.ToggleStatus(ctx)
	require.Error(t, err)
	assert.False(t, f.svc.Online())
	assert.Empty(t, f.notifier.sent)

	// Queue survives the failed toggle and drains on the next success.
	f.store.failSave = nil
	res, err := f.svc.ToggleStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Notified)
	assert.Equal(t, []int64{31}, f.notifier.recipients())
}

func TestSetOfflineNotice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.SetOfflineNotice(ctx, "  "), ErrEmptyNotice)

	require.NoError(t, f.svc.SetOfflineNotice(ctx, "Back at 6pm."))
	assert.Equal(t, "Back at 6pm.", f.store.snap.Status.OfflineNotice)

	_, err := f.svc.ToggleStatus(ctx)
	require.NoError(t, err)
	res, err := f.svc.StartPurchase(ctx, Buyer{ID: 40})
	require.NoError(t, err)
	assert.Equal(t, "Back at 6pm.", res.Notice)
}

func TestPendingReviewsOldestFirst(t *testing.T) {
	f := newFixture(t)

	first := f.submitOrder(t, Buyer{ID: 51, Name: "Kai"}, "3hr", "1", "TXA")
	f.now = f.now.Add(time.Minute)
	second := f.submitOrder(t, Buyer{ID: 52, Name: "Lia"}, "24hr", "2", "TXB")

	pending := f.svc.PendingOrders()
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)

	msgs := f.svc.PendingReviews()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Text, "PENDING ORDER")
	assert.Contains(t, msgs[0].Text, first.ID)
	assert.Equal(t, ActionApprove, msgs[1].Buttons[0][0].Action)

	// Resolution removes the order from the listing.
	_, err := f.svc.ResolveOrder(context.Background(), 100, first.ID, false)
	require.NoError(t, err)
	assert.Len(t, f.svc.PendingOrders(), 1)
}

func TestStateSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.submitOrder(t, Buyer{ID: 61, Name: "Mia"}, "3hr", "1", "TXC")
	_, err := f.svc.ToggleStatus(ctx)
	require.NoError(t, err)
	_, err = f.svc.StartPurchase(ctx, Buyer{ID: 62})
	require.NoError(t, err)

	// A new service over the same store sees the durable state.
	catalog, err := NewCatalog(DefaultPackages())
	require.NoError(t, err)
	notifier := newFakeNotifier()
	svc2, err := NewService(ctx, Config{Admins: []int64{100}}, catalog, f.store, notifier)
	require.NoError(t, err)
	defer svc2.Close()

	got, ok := svc2.Order(order.ID)
	require.True(t, ok)
	assert.Equal(t, OrderPending, got.Status)
	assert.False(t, svc2.Online())

	res, err := svc2.ToggleStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Notified)
	assert.Equal(t, []int64{62}, notifier.recipients())
}

func TestIsAdmin(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.svc.IsAdmin(100))
	assert.True(t, f.svc.IsAdmin(200))
	assert.False(t, f.svc.IsAdmin(1))
	assert.ElementsMatch(t, []int64{100, 200}, f.svc.Admins())
}
