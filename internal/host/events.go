// internal/host/events.go
package host

import (
	"context"
	"errors"
	"time"

	"github.com/avivl/editwarning/internal/coordinator"
	"github.com/avivl/editwarning/internal/notice"
	"github.com/avivl/editwarning/internal/observability"
	"github.com/avivl/editwarning/internal/store"
)

// ErrPageNotFound is returned for edit attempts on pages that do not exist.
var ErrPageNotFound = errors.New("page not found")

// Coordinator is the part of coordinator.Coordinator the host events use.
type Coordinator interface {
	Evaluate(ctx context.Context, req coordinator.Request) (coordinator.Decision, error)
	Release(ctx context.Context, documentID, userID int64) (int, error)
	Logout(ctx context.Context, userID int64) error
	Locks(ctx context.Context, documentID int64) (store.LockSet, error)
}

// Outcome is what the host shows after an edit attempt.
type Outcome struct {
	Decision coordinator.Decision `json:"decision"`
	Notice   *notice.Notice       `json:"notice,omitempty"`
}

// Events maps host events onto the coordinator.
type Events struct {
	coord   Coordinator
	notices notice.Builder
	logger  *observability.SLogger
	now     func() time.Time
}

// NewEvents wires host events to c, rendering notices with b.
func NewEvents(c Coordinator, b notice.Builder, logger *observability.SLogger) *Events {
	return &Events{coord: c, notices: b, logger: logger, now: time.Now}
}

// EditAttempt evaluates an edit of page by user.
func (e *Events) EditAttempt(ctx context.Context, page PageIdentity, user UserIdentity) (Outcome, error) {
	if page.DocumentID() < 1 {
		return Outcome{}, ErrPageNotFound
	}

	decision, err := e.coord.Evaluate(ctx, coordinator.Request{
		DocumentID: page.DocumentID(),
		Section:    page.RequestedSection(),
		UserID:     user.ID,
		UserName:   user.DisplayName,
	})
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Decision: decision}
	if n, ok := e.notices.ForDecision(decision, e.now()); ok {
		out.Notice = &n
	}
	return out, nil
}

// Save releases the user's locks on the saved page.
func (e *Events) Save(ctx context.Context, page PageIdentity, user UserIdentity) error {
	_, err := e.release(ctx, "save", page, user)
	return err
}

// Cancel releases the user's locks on the page and confirms the cancellation.
func (e *Events) Cancel(ctx context.Context, page PageIdentity, user UserIdentity) (notice.Notice, error) {
	if _, err := e.release(ctx, "cancel", page, user); err != nil {
		return notice.Notice{}, err
	}
	return notice.Canceled(), nil
}

// Logout releases every lock of the user.
func (e *Events) Logout(ctx context.Context, user UserIdentity) error {
	if user.Anonymous() {
		return nil
	}
	return e.coord.Logout(ctx, user.ID)
}

// Locks returns the current locks of page.
func (e *Events) Locks(ctx context.Context, page PageIdentity) (store.LockSet, error) {
	if page.DocumentID() < 1 {
		return store.LockSet{}, ErrPageNotFound
	}
	return e.coord.Locks(ctx, page.DocumentID())
}

func (e *Events) release(ctx context.Context, event string, page PageIdentity, user UserIdentity) (int, error) {
	if page.DocumentID() < 1 || user.Anonymous() {
		return 0, nil
	}
	n, err := e.coord.Release(ctx, page.DocumentID(), user.ID)
	if err != nil {
		return 0, err
	}
	e.logger.Debugw("released locks", "event", event, "document_id", page.DocumentID(), "user_id", user.ID, "count", n)
	return n, nil
}
