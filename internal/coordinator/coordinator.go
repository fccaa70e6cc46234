// internal/coordinator/coordinator.go
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/avivl/editwarning/internal/observability"
	"github.com/avivl/editwarning/internal/store"
)

// ErrInvalidRequest is returned for requests that must never reach the store.
var ErrInvalidRequest = errors.New("invalid edit request")

var tracer = otel.Tracer("github.com/avivl/editwarning/internal/coordinator")

// Coordinator decides who may edit which part of a document.
// It keeps no per-request state; all lock state lives in the store.
type Coordinator struct {
	store    store.LockStore
	logger   *observability.SLogger
	now      func() time.Time
	timeout  time.Duration
	recorder Recorder
}

// New returns a Coordinator backed by s.
func New(s store.LockStore, logger *observability.SLogger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    s,
		logger:   logger,
		now:      time.Now,
		timeout:  DefaultLockTimeout,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LockTimeout returns the configured lock expiry.
func (c *Coordinator) LockTimeout() time.Duration {
	return c.timeout
}

// Evaluate decides an edit attempt and applies the resulting lock changes atomically.
// On a store failure no decision is returned and nothing is granted or refreshed.
func (c *Coordinator) Evaluate(ctx context.Context, req Request) (Decision, error) {
	if req.DocumentID < 1 {
		return Decision{}, fmt.Errorf("%w: document id %d", ErrInvalidRequest, req.DocumentID)
	}
	if req.Section < 0 {
		req.Section = store.ArticleSection
	}

	ctx, span := tracer.Start(ctx, "Coordinator.Evaluate", trace.WithAttributes(
		attribute.Int64("document.id", req.DocumentID),
		attribute.Int("document.section", req.Section),
		attribute.Bool("user.anonymous", req.Anonymous()),
	))
	defer span.End()

	var (
		decision Decision
		expired  int
	)
	err := c.store.Update(ctx, req.DocumentID, func(tx *store.Tx) error {
		now := c.now()
		expired = c.prune(ctx, tx, now)
		decision = c.decide(tx, req, now)
		return nil
	})
	if err != nil {
		err = c.storeFailure(ctx, span, "evaluate", err)
		return Decision{}, fmt.Errorf("evaluate document %d: %w", req.DocumentID, err)
	}

	if expired > 0 {
		c.recorder.RecordExpired(expired)
	}
	c.recorder.RecordDecision(decision.Kind.String())
	span.SetAttributes(attribute.String("decision.kind", decision.Kind.String()))
	c.logger.Debugw("edit attempt evaluated",
		"document_id", req.DocumentID,
		"section", req.Section,
		"user_id", req.UserID,
		"decision", decision.Kind.String(),
	)
	return decision, nil
}

// prune repairs a document holding both lock scopes and drops expired locks.
// It returns how many locks expired.
func (c *Coordinator) prune(ctx context.Context, tx *store.Tx, now time.Time) int {
	loaded := tx.Loaded()
	if !loaded.Consistent() {
		orphans := make([]int, 0, len(loaded.Sections))
		for _, rec := range loaded.Sections {
			orphans = append(orphans, rec.Section)
			tx.Delete(rec.Section)
		}
		c.logger.ErrorCtx(ctx, store.ErrUnexpectedState,
			"document_id", loaded.DocumentID,
			"article_holder", loaded.Article.UserID,
			"orphan_sections", orphans,
		)
	}

	if c.timeout <= 0 {
		return 0
	}
	expired := 0
	for _, rec := range tx.Locks().Records() {
		if rec.Expired(now, c.timeout) {
			tx.Delete(rec.Section)
			expired++
		}
	}
	return expired
}

func (c *Coordinator) decide(tx *store.Tx, req Request, now time.Time) Decision {
	set := tx.Locks()
	holds := func(rec store.LockRecord) bool {
		return !req.Anonymous() && rec.UserID == req.UserID
	}
	d := Decision{DocumentID: req.DocumentID, Section: req.Section}

	if req.Section == store.ArticleSection {
		switch {
		case set.Article != nil && holds(*set.Article):
			return c.acquire(tx, d, Refreshed, req, now)
		case set.Article != nil:
			return conflict(d, ConflictArticle, *set.Article)
		case len(set.Sections) > 0:
			if foreign, ok := newestForeign(set.Sections, holds); ok {
				return conflict(d, ConflictArticleFromSections, foreign)
			}
			for _, rec := range set.Sections {
				tx.Delete(rec.Section)
			}
			return c.acquire(tx, d, TransitionToArticle, req, now)
		}
		return c.grant(tx, d, req, now)
	}

	if set.Article != nil {
		if !holds(*set.Article) {
			return conflict(d, ConflictArticle, *set.Article)
		}
		tx.Delete(store.ArticleSection)
		return c.acquire(tx, d, TransitionToSection, req, now)
	}
	if rec, ok := set.Section(req.Section); ok {
		if !holds(rec) {
			return conflict(d, ConflictSection, rec)
		}
		return c.acquire(tx, d, Refreshed, req, now)
	}
	return c.grant(tx, d, req, now)
}

func (c *Coordinator) grant(tx *store.Tx, d Decision, req Request, now time.Time) Decision {
	if req.Anonymous() {
		d.Kind = AnonymousNoLock
		return d
	}
	return c.acquire(tx, d, Granted, req, now)
}

func (c *Coordinator) acquire(tx *store.Tx, d Decision, kind Kind, req Request, now time.Time) Decision {
	rec := store.LockRecord{
		DocumentID: req.DocumentID,
		Section:    req.Section,
		UserID:     req.UserID,
		UserName:   req.UserName,
		AcquiredAt: now,
	}
	tx.Put(rec)
	d.Kind = kind
	d.Lock = &rec
	return d
}

func conflict(d Decision, kind Kind, holder store.LockRecord) Decision {
	d.Kind = kind
	d.Lock = &holder
	return d
}

// newestForeign picks the most recently acquired section lock not held by the requester.
// Ties go to the higher section number.
func newestForeign(sections []store.LockRecord, holds func(store.LockRecord) bool) (store.LockRecord, bool) {
	var (
		best  store.LockRecord
		found bool
	)
	for _, rec := range sections {
		if holds(rec) {
			continue
		}
		if !found || !rec.AcquiredAt.Before(best.AcquiredAt) {
			best, found = rec, true
		}
	}
	return best, found
}

// Release removes every lock userID holds on a document. Anonymous users hold none.
func (c *Coordinator) Release(ctx context.Context, documentID, userID int64) (int, error) {
	if documentID < 1 {
		return 0, fmt.Errorf("%w: document id %d", ErrInvalidRequest, documentID)
	}
	if userID <= 0 {
		return 0, nil
	}

	ctx, span := tracer.Start(ctx, "Coordinator.Release", trace.WithAttributes(
		attribute.Int64("document.id", documentID),
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	removed := 0
	err := c.store.Update(ctx, documentID, func(tx *store.Tx) error {
		held := tx.Loaded().HeldBy(userID)
		for _, rec := range held {
			tx.Delete(rec.Section)
		}
		removed = len(held)
		return nil
	})
	if err != nil {
		err = c.storeFailure(ctx, span, "release", err)
		return 0, fmt.Errorf("release document %d: %w", documentID, err)
	}
	return removed, nil
}

// Logout removes every lock of userID across all documents.
func (c *Coordinator) Logout(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "Coordinator.Logout", trace.WithAttributes(
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	if err := c.store.RemoveByUser(ctx, userID); err != nil {
		err = c.storeFailure(ctx, span, "logout", err)
		return fmt.Errorf("logout user %d: %w", userID, err)
	}
	return nil
}

// Locks returns the current lock set of a document, expired locks excluded.
func (c *Coordinator) Locks(ctx context.Context, documentID int64) (store.LockSet, error) {
	if documentID < 1 {
		return store.LockSet{}, fmt.Errorf("%w: document id %d", ErrInvalidRequest, documentID)
	}

	ctx, span := tracer.Start(ctx, "Coordinator.Locks", trace.WithAttributes(
		attribute.Int64("document.id", documentID),
	))
	defer span.End()

	set, err := c.store.Load(ctx, documentID)
	if err != nil {
		err = c.storeFailure(ctx, span, "load", err)
		return store.LockSet{}, fmt.Errorf("load document %d: %w", documentID, err)
	}
	if c.timeout <= 0 {
		return set, nil
	}

	now := c.now()
	live := make([]store.LockRecord, 0, len(set.Sections)+1)
	for _, rec := range set.Records() {
		if !rec.Expired(now, c.timeout) {
			live = append(live, rec)
		}
	}
	return store.NewLockSet(documentID, live), nil
}

// PurgeExpired deletes locks older than the lock timeout from every document.
func (c *Coordinator) PurgeExpired(ctx context.Context) (int, error) {
	if c.timeout <= 0 {
		return 0, nil
	}

	ctx, span := tracer.Start(ctx, "Coordinator.PurgeExpired")
	defer span.End()

	removed, err := c.store.RemoveExpired(ctx, c.now().Add(-c.timeout))
	if err != nil {
		err = c.storeFailure(ctx, span, "remove_expired", err)
		return removed, fmt.Errorf("purge expired locks: %w", err)
	}
	if removed > 0 {
		c.recorder.RecordExpired(removed)
		c.logger.InfoCtx(ctx, "purged expired locks", "count", removed)
	}
	return removed, nil
}

// storeFailure records a failed store call and makes sure it matches ErrStoreUnavailable.
func (c *Coordinator) storeFailure(ctx context.Context, span trace.Span, op string, err error) error {
	if !errors.Is(err, store.ErrStoreUnavailable) {
		err = store.Unavailable(op, err)
	}
	observability.RecordSpanError(span, err)
	c.recorder.RecordStoreError(op)
	c.logger.ErrorCtx(ctx, err, "operation", op)
	return err
}
