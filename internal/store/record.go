// internal/store/record.go
package store

import (
	"fmt"
	"sort"
	"time"
)

// ArticleSection is the reserved section number of a whole-document lock.
const ArticleSection = 0

// LockRecord describes one held edit lock.
type LockRecord struct {
	DocumentID int64     `json:"documentId"`
	Section    int       `json:"section"`
	UserID     int64     `json:"userId"`
	UserName   string    `json:"userName"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

// IsArticle reports whether the record locks the whole document.
func (r LockRecord) IsArticle() bool {
	return r.Section == ArticleSection
}

// Expired reports whether the lock is older than timeout at now.
// A zero timeout never expires.
func (r LockRecord) Expired(now time.Time, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	return r.AcquiredAt.Before(now.Add(-timeout))
}

// Validate checks the fields a backend relies on for keying.
func (r LockRecord) Validate() error {
	if r.DocumentID < 1 {
		return fmt.Errorf("%w: document id %d", ErrInvalidRecord, r.DocumentID)
	}
	if r.Section < 0 {
		return fmt.Errorf("%w: section %d", ErrInvalidRecord, r.Section)
	}
	if r.UserID < 1 {
		return fmt.Errorf("%w: anonymous holder", ErrInvalidRecord)
	}
	return nil
}

// LockSet is the current lock state of one document.
type LockSet struct {
	DocumentID int64        `json:"documentId"`
	Article    *LockRecord  `json:"article,omitempty"`
	Sections   []LockRecord `json:"sections"`
}

// NewLockSet groups raw records of a document. Sections are sorted by number.
func NewLockSet(documentID int64, records []LockRecord) LockSet {
	set := LockSet{DocumentID: documentID, Sections: make([]LockRecord, 0, len(records))}
	for _, rec := range records {
		if rec.IsArticle() {
			article := rec
			set.Article = &article
			continue
		}
		set.Sections = append(set.Sections, rec)
	}
	sort.Slice(set.Sections, func(i, j int) bool {
		return set.Sections[i].Section < set.Sections[j].Section
	})
	return set
}

// Empty reports whether no lock is held on the document.
func (s LockSet) Empty() bool {
	return s.Article == nil && len(s.Sections) == 0
}

// Consistent reports whether the set is either one article lock or only section locks.
func (s LockSet) Consistent() bool {
	return s.Article == nil || len(s.Sections) == 0
}

// Section returns the lock on section n, if any.
func (s LockSet) Section(n int) (LockRecord, bool) {
	for _, rec := range s.Sections {
		if rec.Section == n {
			return rec, true
		}
	}
	return LockRecord{}, false
}

// Records flattens the set, article lock first.
func (s LockSet) Records() []LockRecord {
	out := make([]LockRecord, 0, len(s.Sections)+1)
	if s.Article != nil {
		out = append(out, *s.Article)
	}
	return append(out, s.Sections...)
}

// HeldBy returns every record of the set owned by userID.
func (s LockSet) HeldBy(userID int64) []LockRecord {
	var out []LockRecord
	for _, rec := range s.Records() {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out
}
