package bundle

import "context"

// DefaultOfflineNotice is shown to buyers who start a purchase while
// the service is marked unavailable, unless an admin configured another
// text.
const DefaultOfflineNotice = "Sorry, the service is currently offline. We'll notify you when we're back online."

// Status is the global service availability record.
type Status struct {
	Online        bool   `json:"online"`
	OfflineNotice string `json:"offline_message"`
}

// DefaultStatus is the first-run status: online with the stock notice.
func DefaultStatus() Status {
	return Status{Online: true, OfflineNotice: DefaultOfflineNotice}
}

// Snapshot is the full durable state: every order ever taken, the set
// of buyers waiting for a back-online notice, and the availability
// record.
type Snapshot struct {
	Orders       map[string]Order
	OfflineQueue []int64
	Status       Status
}

// EmptySnapshot returns the first-run state.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Orders: make(map[string]Order),
		Status: DefaultStatus(),
	}
}

// Store owns the canonical durable copy of the snapshot. Save replaces
// the whole snapshot; it is invoked after every state-changing
// operation so an acknowledged operation survives a crash. Load must
// return EmptySnapshot-equivalent defaults when no state exists yet.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Close() error
}
