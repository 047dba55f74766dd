package review

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Callbacks are the collaborator operations the dispatcher drives. Any of them may be nil, in
// which case the matching action is a guarded no-op.
type Callbacks struct {
	ApproveAccount   func(ctx context.Context, userID int64) error
	RejectAccount    func(ctx context.Context, userID int64, reason string) error
	ApproveInventory func(ctx context.Context, pendingID int64) error
	RejectInventory  func(ctx context.Context, pendingID int64, reason string) error
	RequestChanges   func(ctx context.Context, pendingID int64, changeType, comment string) error

	RefreshUsers     func(ctx context.Context) error
	RefreshInventory func(ctx context.Context) error
	RefreshPending   func(ctx context.Context) error
}

// ActionOutcome is the result of one dispatched action.
type ActionOutcome string

const (
	ActionSkipped   ActionOutcome = "skipped"
	ActionInvalid   ActionOutcome = "invalid"
	ActionSucceeded ActionOutcome = "succeeded"
	ActionFailed    ActionOutcome = "failed"
	// ActionPending means the action was accepted and runs in the background.
	ActionPending ActionOutcome = "pending"
)

// ErrActionPanicked wraps a panic raised by a collaborator callback.
var ErrActionPanicked = errors.New("review action panicked")

// Action names used in logs and observations.
const (
	ActionApprove        = "approve"
	ActionReject         = "reject"
	ActionRequestChanges = "request_changes"
)

// ErrCommentRequired is the inline field error shown when a change request has no comment.
const ErrCommentRequired = "A comment is required to request changes"

// RejectDialog is the confirmation dialog collecting an optional rejection reason.
type RejectDialog struct {
	Open       bool   `json:"open"`
	Kind       Kind   `json:"kind,omitempty"`
	ID         int64  `json:"id,omitempty"`
	Reason     string `json:"reason"`
	Submitting bool   `json:"submitting"`
}

// ChangesDialog collects the change type and mandatory comment for a change request.
type ChangesDialog struct {
	Open       bool   `json:"open"`
	ID         int64  `json:"id,omitempty"`
	ChangeType string `json:"changeType"`
	Comment    string `json:"comment"`
	Loading    bool   `json:"loading"`
	FieldError string `json:"fieldError,omitempty"`
}

type actionKey struct {
	kind Kind
	id   int64
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Sanitizer Sanitizer
	Logger    *zap.SugaredLogger
	// Observe is told the outcome of every action that reached a collaborator.
	Observe func(kind Kind, action string, outcome ActionOutcome)
	// Go runs accepted actions. The in-flight slot is taken before Go is called, so the caller
	// can publish the busy state while the collaborator works. Nil runs actions inline.
	Go func(run func())
}

// Dispatcher runs approve, reject and request-changes actions with per-ID in-flight tracking.
// The slot is taken synchronously; the collaborator call may run elsewhere (see Go).
// An ID with an outstanding action has every action disabled; other IDs are unaffected.
// Failures are logged and recorded, never returned to the caller's view.
type Dispatcher struct {
	cb   Callbacks
	opts DispatcherOptions

	mu       sync.Mutex
	inFlight map[actionKey]bool
	lastErr  map[actionKey]error
	reject   RejectDialog
	changes  ChangesDialog
}

func NewDispatcher(cb Callbacks, opts DispatcherOptions) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Sanitizer == nil {
		opts.Sanitizer = SanitizerFunc(func(s string) string { return s })
	}
	return &Dispatcher{
		cb:       cb,
		opts:     opts,
		inFlight: make(map[actionKey]bool),
		lastErr:  make(map[actionKey]error),
	}
}

// InFlight reports whether id has an outstanding action; its buttons render disabled.
func (d *Dispatcher) InFlight(kind Kind, id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight[actionKey{kind, id}]
}

// InFlightIDs lists the busy IDs of one kind in ascending order.
func (d *Dispatcher) InFlightIDs(kind Kind) []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]int64, 0, len(d.inFlight))
	for k := range d.inFlight {
		if k.kind == kind {
			ids = append(ids, k.id)
		}
	}
	slices.Sort(ids)
	return ids
}

// LastError returns the failure of the most recent action on id, if it failed.
func (d *Dispatcher) LastError(kind Kind, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr[actionKey{kind, id}]
}

// Failures returns the recorded error message per ID of one kind.
func (d *Dispatcher) Failures(kind Kind) map[int64]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[int64]string)
	for k, err := range d.lastErr {
		if k.kind == kind {
			out[k.id] = err.Error()
		}
	}
	return out
}

func (d *Dispatcher) acquire(k actionKey) bool {
	if d.inFlight[k] {
		return false
	}
	d.inFlight[k] = true
	return true
}

func (d *Dispatcher) release(k actionKey, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inFlight, k)
	if err != nil {
		d.lastErr[k] = err
	} else {
		delete(d.lastErr, k)
	}
}

// exec hands run to the Go option, or runs it inline when none is set.
func (d *Dispatcher) exec(run func() ActionOutcome) ActionOutcome {
	if d.opts.Go == nil {
		return run()
	}
	d.opts.Go(func() { run() })
	return ActionPending
}

// settle runs fn, then always resets the dialog (if any) and releases k, even when fn panics.
// A panic is logged and reported as a failure.
func (d *Dispatcher) settle(k actionKey, action string, reset func(err error), fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrActionPanicked, r)
			d.opts.Logger.Errorw("review action panicked", "kind", k.kind, "id", k.id, "action", action, "panic", r)
		}
		if reset != nil {
			d.mu.Lock()
			reset(err)
			d.mu.Unlock()
		}
		d.release(k, err)
	}()
	return fn()
}

func recovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrActionPanicked, r)
		}
	}()
	return fn()
}

func (d *Dispatcher) observe(kind Kind, action string, outcome ActionOutcome) {
	if d.opts.Observe != nil {
		d.opts.Observe(kind, action, outcome)
	}
}

func (d *Dispatcher) approveFn(kind Kind) func(context.Context, int64) error {
	switch kind {
	case KindUser:
		return d.cb.ApproveAccount
	case KindInventory:
		return d.cb.ApproveInventory
	}
	return nil
}

func (d *Dispatcher) rejectFn(kind Kind) func(context.Context, int64, string) error {
	switch kind {
	case KindUser:
		return d.cb.RejectAccount
	case KindInventory:
		return d.cb.RejectInventory
	}
	return nil
}

// refresh re-fetches the authoritative list after a server-confirmed change.
func (d *Dispatcher) refresh(ctx context.Context, kind Kind) {
	var fn func(context.Context) error
	switch kind {
	case KindUser:
		fn = d.cb.RefreshUsers
	case KindInventory:
		fn = d.cb.RefreshInventory
		if fn == nil {
			fn = d.cb.RefreshPending
		}
	}
	if fn == nil {
		return
	}
	if err := recovered(func() error { return fn(ctx) }); err != nil {
		d.opts.Logger.Errorw("refresh after action failed", "kind", kind, "error", err)
	}
}

// Approve approves id. It is a no-op when the callback is missing or id is already busy.
func (d *Dispatcher) Approve(ctx context.Context, kind Kind, id int64) ActionOutcome {
	fn := d.approveFn(kind)
	if fn == nil {
		return ActionSkipped
	}
	k := actionKey{kind, id}
	d.mu.Lock()
	ok := d.acquire(k)
	d.mu.Unlock()
	if !ok {
		return ActionSkipped
	}

	return d.exec(func() ActionOutcome {
		err := d.settle(k, ActionApprove, nil, func() error { return fn(ctx, id) })
		if err != nil {
			d.opts.Logger.Errorw("approve failed", "kind", kind, "id", id, "error", err)
			d.observe(kind, ActionApprove, ActionFailed)
			return ActionFailed
		}
		d.refresh(ctx, kind)
		d.observe(kind, ActionApprove, ActionSucceeded)
		return ActionSucceeded
	})
}

// OpenReject opens the rejection dialog for id. It refuses while id is busy or another
// rejection is being submitted.
func (d *Dispatcher) OpenReject(kind Kind, id int64) bool {
	if d.rejectFn(kind) == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reject.Submitting || d.inFlight[actionKey{kind, id}] {
		return false
	}
	d.reject = RejectDialog{Open: true, Kind: kind, ID: id}
	return true
}

func (d *Dispatcher) SetRejectReason(raw string) {
	clean := d.opts.Sanitizer.Sanitize(raw)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reject.Open && !d.reject.Submitting {
		d.reject.Reason = clean
	}
}

// CancelReject closes the dialog without side effects. Cancelling is disabled mid-submission.
func (d *Dispatcher) CancelReject() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.reject.Open || d.reject.Submitting {
		return false
	}
	d.reject = RejectDialog{}
	return true
}

func (d *Dispatcher) RejectDialogState() RejectDialog {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reject
}

// ConfirmReject submits the open rejection with its (possibly empty) reason.
func (d *Dispatcher) ConfirmReject(ctx context.Context) ActionOutcome {
	d.mu.Lock()
	dlg := d.reject
	if !dlg.Open || dlg.Submitting {
		d.mu.Unlock()
		return ActionSkipped
	}
	fn := d.rejectFn(dlg.Kind)
	k := actionKey{dlg.Kind, dlg.ID}
	if fn == nil || !d.acquire(k) {
		d.mu.Unlock()
		return ActionSkipped
	}
	d.reject.Submitting = true
	d.mu.Unlock()

	return d.exec(func() ActionOutcome {
		closeDialog := func(error) { d.reject = RejectDialog{} }
		err := d.settle(k, ActionReject, closeDialog, func() error {
			return fn(ctx, dlg.ID, strings.TrimSpace(dlg.Reason))
		})
		if err != nil {
			d.opts.Logger.Errorw("reject failed", "kind", dlg.Kind, "id", dlg.ID, "error", err)
			d.observe(dlg.Kind, ActionReject, ActionFailed)
			return ActionFailed
		}
		d.refresh(ctx, dlg.Kind)
		d.observe(dlg.Kind, ActionReject, ActionSucceeded)
		return ActionSucceeded
	})
}

// OpenRequestChanges opens the change-request dialog for an inventory request.
func (d *Dispatcher) OpenRequestChanges(id int64, changeType string) bool {
	if d.cb.RequestChanges == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.changes.Loading || d.inFlight[actionKey{KindInventory, id}] {
		return false
	}
	d.changes = ChangesDialog{Open: true, ID: id, ChangeType: changeType}
	return true
}

func (d *Dispatcher) SetChangeType(changeType string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.changes.Open && !d.changes.Loading {
		d.changes.ChangeType = changeType
	}
}

func (d *Dispatcher) SetChangeComment(raw string) {
	clean := d.opts.Sanitizer.Sanitize(raw)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.changes.Open && !d.changes.Loading {
		d.changes.Comment = clean
		if strings.TrimSpace(clean) != "" {
			d.changes.FieldError = ""
		}
	}
}

// CanConfirmChanges reports whether the confirm button is enabled.
func (d *Dispatcher) CanConfirmChanges() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.changes.Open && !d.changes.Loading && strings.TrimSpace(d.changes.Comment) != ""
}

// CancelRequestChanges closes the dialog; it is disabled while the request is in flight.
func (d *Dispatcher) CancelRequestChanges() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.changes.Open || d.changes.Loading {
		return false
	}
	d.changes = ChangesDialog{}
	return true
}

func (d *Dispatcher) ChangesDialogState() ChangesDialog {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.changes
}

// ConfirmRequestChanges sends the change request and then refreshes the pending list. The
// dialog stays open and loading until both finish; it closes only on success.
func (d *Dispatcher) ConfirmRequestChanges(ctx context.Context) ActionOutcome {
	d.mu.Lock()
	dlg := d.changes
	if !dlg.Open || dlg.Loading {
		d.mu.Unlock()
		return ActionSkipped
	}
	comment := strings.TrimSpace(dlg.Comment)
	if comment == "" {
		d.changes.FieldError = ErrCommentRequired
		d.mu.Unlock()
		return ActionInvalid
	}
	k := actionKey{KindInventory, dlg.ID}
	if d.cb.RequestChanges == nil || !d.acquire(k) {
		d.mu.Unlock()
		return ActionSkipped
	}
	d.changes.Loading = true
	d.mu.Unlock()

	return d.exec(func() ActionOutcome {
		settleDialog := func(err error) {
			if err == nil {
				d.changes = ChangesDialog{}
			} else {
				d.changes.Loading = false
			}
		}
		err := d.settle(k, ActionRequestChanges, settleDialog, func() error {
			if err := d.cb.RequestChanges(ctx, dlg.ID, dlg.ChangeType, comment); err != nil {
				return err
			}
			if d.cb.RefreshPending != nil {
				if rerr := recovered(func() error { return d.cb.RefreshPending(ctx) }); rerr != nil {
					d.opts.Logger.Errorw("refresh after change request failed", "id", dlg.ID, "error", rerr)
				}
			}
			return nil
		})
		if err != nil {
			d.opts.Logger.Errorw("request changes failed", "id", dlg.ID, "error", err)
			d.observe(KindInventory, ActionRequestChanges, ActionFailed)
			return ActionFailed
		}
		d.observe(KindInventory, ActionRequestChanges, ActionSucceeded)
		return ActionSucceeded
	})
}
