// internal/coordinator/decision_test.go
package coordinator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avivl/editwarning/internal/store"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "granted", Granted.String())
	assert.Equal(t, "conflict_article_from_sections", ConflictArticleFromSections.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}

func TestKindClassification(t *testing.T) {
	for kind := Granted; kind <= AnonymousNoLock; kind++ {
		assert.False(t, kind.IsConflict() && kind.Holds(), kind.String())
	}
	assert.False(t, AnonymousNoLock.IsConflict())
	assert.False(t, AnonymousNoLock.Holds())
	assert.True(t, TransitionToArticle.Holds())
}

func TestDecisionJSON(t *testing.T) {
	d := Decision{
		Kind:       ConflictSection,
		DocumentID: 42,
		Section:    3,
		Lock:       &store.LockRecord{DocumentID: 42, Section: 3, UserID: 1, UserName: "Alice"},
	}

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"conflict_section"`)

	var back Decision
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ConflictSection, back.Kind)
	assert.Equal(t, "Alice", back.Lock.UserName)

	_, err = json.Marshal(Decision{Kind: Kind(0)})
	assert.Error(t, err)
}
