package notifications

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/comedorlabs/comedor-backend/pkg/db/models"
	pkgerrors "github.com/comedorlabs/comedor-backend/pkg/errors"
	"github.com/comedorlabs/comedor-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// State is a point-in-time copy of one user's reconciled notification view.
type State struct {
	Items       []models.Notification
	UnreadCount int
	Loading     bool
	Err         error
}

// ReconcilerOptions tunes fetch size and the retry policy for transient
// store errors.
type ReconcilerOptions struct {
	FetchLimit       int
	RetryBase        time.Duration
	RetryMaxAttempts int
}

func (o ReconcilerOptions) withDefaults() ReconcilerOptions {
	if o.FetchLimit <= 0 {
		o.FetchLimit = 50
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 100 * time.Millisecond
	}
	if o.RetryMaxAttempts <= 0 {
		o.RetryMaxAttempts = 3
	}
	return o
}

// Reconciler maintains one user's live notification view: an ordered list
// (newest first), an unread counter and loading/error flags. Every mutation
// of the view, whether from a local operation or a feed event, goes through
// the same mutex so there is exactly one writer at any moment.
//
// Fetches run outside the lock and carry a sequence number: when overlapping
// fetches resolve out of order, only the latest one lands, and records
// inserted live while a fetch was in flight are merged back by id instead of
// being overwritten.
type Reconciler struct {
	svc    Service
	broker *Broker
	logg   *logger.Logger
	userID uuid.UUID
	opts   ReconcilerOptions

	mu       sync.Mutex
	state    State
	fetchSeq uint64
}

// NewReconciler builds a reconciler for one user. The caller owns the
// lifecycle: Run blocks until the context is canceled.
func NewReconciler(svc Service, broker *Broker, logg *logger.Logger, userID uuid.UUID, opts ReconcilerOptions) (*Reconciler, error) {
	if svc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications service required")
	}
	if broker == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "feed broker required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return &Reconciler{
		svc:    svc,
		broker: broker,
		logg:   logg,
		userID: userID,
		opts:   opts.withDefaults(),
	}, nil
}

// Snapshot returns a copy of the current view.
func (r *Reconciler) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.state
	out.Items = make([]models.Notification, len(r.state.Items))
	copy(out.Items, r.state.Items)
	return out
}

// UserID returns the identity this reconciler serves.
func (r *Reconciler) UserID() uuid.UUID {
	return r.userID
}

// Run subscribes to the user's change feed, performs the initial fetch and
// applies events until the context is canceled. A lagged subscription is
// recovered with a full refetch on a fresh subscription.
func (r *Reconciler) Run(ctx context.Context) {
	ctx = r.logg.WithUserID(ctx, r.userID.String())
	sub := r.broker.Subscribe(r.userID)
	defer func() { sub.Unsubscribe() }()

	r.Fetch(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Lagged():
			r.logg.Warn(ctx, "notification feed lagged, refetching")
			sub.Unsubscribe()
			sub = r.broker.Subscribe(r.userID)
			r.Fetch(ctx)
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			r.applyEvent(event)
		}
	}
}

// Fetch loads the latest page from the store and reconciles it with the
// local view. Transient store errors are retried with exponential backoff;
// a terminal error is recorded on the state and the previous items survive.
func (r *Reconciler) Fetch(ctx context.Context) {
	r.mu.Lock()
	r.fetchSeq++
	seq := r.fetchSeq
	r.state.Loading = true
	r.mu.Unlock()

	var rows []models.Notification
	backoff := retry.WithMaxRetries(uint64(r.opts.RetryMaxAttempts), retry.NewExponential(r.opts.RetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var fetchErr error
		rows, fetchErr = r.svc.ListLatest(ctx, r.userID, r.opts.FetchLimit)
		if fetchErr != nil && pkgerrors.IsRetryable(fetchErr) {
			return retry.RetryableError(fetchErr)
		}
		return fetchErr
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if seq != r.fetchSeq {
		// A newer fetch superseded this one; its result decides the view.
		return
	}
	r.state.Loading = false
	if err != nil {
		r.state.Err = err
		r.logg.Error(ctx, "notification fetch failed", err)
		return
	}
	r.state.Err = nil
	r.state.Items = r.mergeFetched(rows)
	r.state.UnreadCount = countUnread(r.state.Items)
}

// mergeFetched folds live inserts that arrived while the fetch was in
// flight into the fetched page. Local entries win on read state; entries the
// store no longer returns but that exist only locally are kept, since a
// concurrent insert event may beat the store snapshot. Caller holds mu.
func (r *Reconciler) mergeFetched(rows []models.Notification) []models.Notification {
	fetched := make(map[uuid.UUID]int, len(rows))
	for i, row := range rows {
		fetched[row.ID] = i
	}

	merged := make([]models.Notification, len(rows))
	copy(merged, rows)
	for _, local := range r.state.Items {
		if idx, ok := fetched[local.ID]; ok {
			if local.Read && !merged[idx].Read {
				merged[idx].Read = true
			}
			continue
		}
		merged = append(merged, local)
	}

	sortNotifications(merged)
	if len(merged) > r.opts.FetchLimit {
		merged = merged[:r.opts.FetchLimit]
	}
	return merged
}

// MarkRead persists the flag first and reflects it locally only after the
// write succeeded. A record already gone from the store counts as applied.
func (r *Reconciler) MarkRead(ctx context.Context, notificationID uuid.UUID) error {
	err := r.svc.MarkRead(ctx, r.userID, notificationID)
	if err != nil && pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		r.logg.Error(ctx, "mark read failed", err)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.state.Items {
		if r.state.Items[i].ID != notificationID {
			continue
		}
		if !r.state.Items[i].Read {
			r.state.Items[i].Read = true
			r.decrementUnread()
		}
		break
	}
	return nil
}

// MarkAllRead flips every local entry after the store write succeeded.
func (r *Reconciler) MarkAllRead(ctx context.Context) error {
	if _, err := r.svc.MarkAllRead(ctx, r.userID); err != nil {
		r.logg.Error(ctx, "mark all read failed", err)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.state.Items {
		r.state.Items[i].Read = true
	}
	r.state.UnreadCount = 0
	return nil
}

// Delete removes the record and decrements the unread counter only when the
// removed entry was still unread.
func (r *Reconciler) Delete(ctx context.Context, notificationID uuid.UUID) error {
	_, err := r.svc.Delete(ctx, r.userID, notificationID)
	if err != nil && pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		r.logg.Error(ctx, "delete notification failed", err)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(notificationID)
	return nil
}

// ClearAll empties the view after the store-wide delete succeeded.
func (r *Reconciler) ClearAll(ctx context.Context) error {
	if _, err := r.svc.ClearAll(ctx, r.userID); err != nil {
		r.logg.Error(ctx, "clear notifications failed", err)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Items = nil
	r.state.UnreadCount = 0
	return nil
}

func (r *Reconciler) applyEvent(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch event.Kind {
	case EventInsert:
		if event.Notification == nil {
			return
		}
		r.insertLocked(*event.Notification)
	case EventUpdate:
		if event.Notification == nil {
			return
		}
		// Read is the only mutable field, so an update event only needs to
		// carry the id and the new flag.
		for i := range r.state.Items {
			if r.state.Items[i].ID != event.Notification.ID {
				continue
			}
			if r.state.Items[i].Read != event.Notification.Read {
				r.state.Items[i].Read = event.Notification.Read
				if event.Notification.Read {
					r.decrementUnread()
				} else {
					r.state.UnreadCount++
				}
			}
			return
		}
	case EventDelete:
		if event.Notification == nil {
			return
		}
		r.removeLocked(event.Notification.ID)
	case EventAllRead:
		for i := range r.state.Items {
			r.state.Items[i].Read = true
		}
		r.state.UnreadCount = 0
	case EventCleared:
		r.state.Items = nil
		r.state.UnreadCount = 0
	}
}

// insertLocked places the record in sorted position by createdAt instead of
// blindly prepending, so out-of-order feed delivery cannot corrupt ordering.
func (r *Reconciler) insertLocked(notification models.Notification) {
	for i := range r.state.Items {
		if r.state.Items[i].ID == notification.ID {
			return
		}
	}
	r.state.Items = append(r.state.Items, notification)
	sortNotifications(r.state.Items)
	if !notification.Read {
		r.state.UnreadCount++
	}
}

func (r *Reconciler) removeLocked(notificationID uuid.UUID) {
	for i := range r.state.Items {
		if r.state.Items[i].ID != notificationID {
			continue
		}
		if !r.state.Items[i].Read {
			r.decrementUnread()
		}
		r.state.Items = append(r.state.Items[:i], r.state.Items[i+1:]...)
		return
	}
}

func (r *Reconciler) decrementUnread() {
	if r.state.UnreadCount > 0 {
		r.state.UnreadCount--
	}
}

func sortNotifications(items []models.Notification) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID.String() > items[j].ID.String()
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

func countUnread(items []models.Notification) int {
	count := 0
	for _, item := range items {
		if !item.Read {
			count++
		}
	}
	return count
}
