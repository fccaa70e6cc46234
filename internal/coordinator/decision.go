// internal/coordinator/decision.go
package coordinator

import (
	"fmt"

	"github.com/avivl/editwarning/internal/store"
)

// Kind is the outcome of evaluating an edit attempt.
type Kind int

const (
	// Granted means a new lock was acquired for the requested scope.
	Granted Kind = iota + 1
	// Refreshed means the requester already held the lock and its timestamp was renewed.
	Refreshed
	// ConflictArticle means another user holds the whole-document lock.
	ConflictArticle
	// ConflictSection means another user holds the requested section.
	ConflictSection
	// ConflictArticleFromSections means a whole-document request met section locks of other users.
	ConflictArticleFromSections
	// TransitionToSection means the requester's article lock became a section lock.
	TransitionToSection
	// TransitionToArticle means the requester's section locks became one article lock.
	TransitionToArticle
	// AnonymousNoLock means the requester is anonymous and nothing was persisted.
	AnonymousNoLock
)

var kindNames = map[Kind]string{
	Granted:                     "granted",
	Refreshed:                   "refreshed",
	ConflictArticle:             "conflict_article",
	ConflictSection:             "conflict_section",
	ConflictArticleFromSections: "conflict_article_from_sections",
	TransitionToSection:         "transition_to_section",
	TransitionToArticle:         "transition_to_article",
	AnonymousNoLock:             "anonymous_no_lock",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText renders the kind by name in JSON payloads.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown decision kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown decision kind %q", text)
}

// IsConflict reports whether the requester was refused the lock.
func (k Kind) IsConflict() bool {
	return k == ConflictArticle || k == ConflictSection || k == ConflictArticleFromSections
}

// Holds reports whether the requester owns a lock after the decision.
func (k Kind) Holds() bool {
	return k == Granted || k == Refreshed || k == TransitionToSection || k == TransitionToArticle
}

// Request is one edit attempt.
type Request struct {
	DocumentID int64
	Section    int
	UserID     int64
	UserName   string
}

// Anonymous reports whether the request carries no user identity.
func (r Request) Anonymous() bool {
	return r.UserID <= 0
}

// Decision is the result of Evaluate.
//
// Lock is the requester's record for grants, refreshes and transitions, the
// reported holder for conflicts, and nil for AnonymousNoLock.
type Decision struct {
	Kind       Kind              `json:"kind"`
	DocumentID int64             `json:"documentId"`
	Section    int               `json:"section"`
	Lock       *store.LockRecord `json:"lock,omitempty"`
}
