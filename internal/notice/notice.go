// internal/notice/notice.go
package notice

import (
	"strconv"
	"time"

	"github.com/avivl/editwarning/internal/coordinator"
	"github.com/avivl/editwarning/internal/store"
)

// Message keys. Translating them is up to the host.
const (
	KeyNoticeArticle      = "ew-notice-article"
	KeyNoticeSection      = "ew-notice-section"
	KeyWarningArticle     = "ew-warning-article"
	KeyWarningSection     = "ew-warning-section"
	KeyWarningSectionEdit = "ew-warning-sectionedit"
	KeyCanceled           = "ew-canceled"
	KeyMinutes            = "ew-minutes"
	KeySeconds            = "ew-seconds"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Notice is a message key plus its positional parameters.
type Notice struct {
	Key    string   `json:"key"`
	Params []string `json:"params"`
}

// Builder turns decisions into notices.
type Builder struct {
	// Timeout is added to the lock timestamp for the "until" shown to the holder.
	Timeout time.Duration
	// Location renders dates and times. Nil means UTC.
	Location *time.Location
}

// ForDecision returns the notice for d at now. Anonymous requests get none.
//
// Holders get ew-notice-article or ew-notice-section with the date and time
// their lock stays protected until. Conflicting users get a warning naming the
// holder and the time to wait; ew-warning-sectionedit carries only the wait.
func (b Builder) ForDecision(d coordinator.Decision, now time.Time) (Notice, bool) {
	if d.Lock == nil {
		return Notice{}, false
	}
	lock := *d.Lock

	switch d.Kind {
	case coordinator.Granted, coordinator.Refreshed, coordinator.TransitionToSection, coordinator.TransitionToArticle:
		key := KeyNoticeSection
		if lock.IsArticle() {
			key = KeyNoticeArticle
		}
		until := b.in(lock.AcquiredAt.Add(b.Timeout))
		return Notice{Key: key, Params: []string{until.Format(DateLayout), until.Format(TimeLayout)}}, true

	case coordinator.ConflictArticle, coordinator.ConflictSection:
		key := KeyWarningSection
		if d.Kind == coordinator.ConflictArticle {
			key = KeyWarningArticle
		}
		return Notice{Key: key, Params: b.warningParams(lock, now)}, true

	case coordinator.ConflictArticleFromSections:
		wait, unit := WaitTime(now, lock.AcquiredAt)
		return Notice{Key: KeyWarningSectionEdit, Params: []string{strconv.FormatInt(wait, 10), unit.Key()}}, true
	}
	return Notice{}, false
}

func (b Builder) warningParams(holder store.LockRecord, now time.Time) []string {
	at := b.in(holder.AcquiredAt)
	wait, unit := WaitTime(now, holder.AcquiredAt)
	return []string{
		holder.UserName,
		at.Format(DateLayout),
		at.Format(TimeLayout),
		strconv.FormatInt(wait, 10),
		unit.Key(),
	}
}

// Canceled confirms a cancelled edit.
func Canceled() Notice {
	return Notice{Key: KeyCanceled, Params: []string{}}
}

func (b Builder) in(t time.Time) time.Time {
	if b.Location == nil {
		return t.UTC()
	}
	return t.In(b.Location)
}
