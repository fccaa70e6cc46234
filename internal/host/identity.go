// internal/host/identity.go
package host

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	// SectionQueryParam is the section requested in the edit URL.
	SectionQueryParam = "section"
	// SectionFormField is the section submitted with the edit form. It wins over the query.
	SectionFormField = "wpSection"
)

// PageIdentity identifies the page being edited.
type PageIdentity interface {
	// DocumentID is the page id. Values below 1 mean the page does not exist.
	DocumentID() int64
	// RequestedSection is the edit scope, 0 for the whole page.
	RequestedSection() int
}

// Page is a resolved PageIdentity.
type Page struct {
	ID      int64
	Section int
}

// NewPage resolves the requested section of page id from the request values.
func NewPage(id int64, query, form url.Values) Page {
	return Page{ID: id, Section: ResolveSection(query, form)}
}

func (p Page) DocumentID() int64     { return p.ID }
func (p Page) RequestedSection() int { return p.Section }

// Exists reports whether the page can carry locks.
func (p Page) Exists() bool { return p.ID >= 1 }

// ResolveSection picks the requested section: the form field when present,
// otherwise the query parameter, otherwise 0. Unparsable or negative values are 0.
func ResolveSection(query, form url.Values) int {
	if form.Has(SectionFormField) {
		return parseSection(form.Get(SectionFormField))
	}
	if query.Has(SectionQueryParam) {
		return parseSection(query.Get(SectionQueryParam))
	}
	return 0
}

func parseSection(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// UserIdentity is the acting user. ID 0 is anonymous.
type UserIdentity struct {
	ID          int64
	DisplayName string
}

// Anonymous reports whether the user is not logged in.
func (u UserIdentity) Anonymous() bool {
	return u.ID <= 0
}
