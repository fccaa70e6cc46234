// internal/server/handlers.go
package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/avivl/editwarning/internal/host"
	"github.com/avivl/editwarning/internal/notice"
	"github.com/avivl/editwarning/internal/store"
)

const (
	// UserIDHeader carries the acting user's id. Missing or 0 means anonymous.
	UserIDHeader = "X-User-Id"
	// UserNameHeader carries the acting user's display name.
	UserNameHeader = "X-User-Name"
)

// documentParams is the document addressed by the URL.
type documentParams struct {
	DocumentID int64 `validate:"gte=1"`
}

// userParams is the acting user taken from the request headers.
type userParams struct {
	ID   int64  `validate:"gte=0"`
	Name string `validate:"required_unless=ID 0,max=255"`
}

type logoutParams struct {
	UserID int64 `validate:"gte=1"`
}

// EventResponse answers save and cancel.
type EventResponse struct {
	Event  string         `json:"event"`
	Notice *notice.Notice `json:"notice,omitempty"`
}

// HealthResponse answers /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) edit(w http.ResponseWriter, r *http.Request) {
	page, user, ok := s.pageAndUser(w, r)
	if !ok {
		return
	}
	out, err := s.events.EditAttempt(r.Context(), page, user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) save(w http.ResponseWriter, r *http.Request) {
	page, user, ok := s.pageAndUser(w, r)
	if !ok {
		return
	}
	if err := s.events.Save(r.Context(), page, user); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EventResponse{Event: "save"})
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	page, user, ok := s.pageAndUser(w, r)
	if !ok {
		return
	}
	n, err := s.events.Cancel(r.Context(), page, user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EventResponse{Event: "cancel", Notice: &n})
}

func (s *Server) locks(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.document(w, r)
	if !ok {
		return
	}
	set, err := s.events.Locks(r.Context(), host.Page{ID: doc.DocumentID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if set.Sections == nil {
		set.Sections = []store.LockRecord{}
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid user id", err.Error())
		return
	}
	params := logoutParams{UserID: id}
	if !s.valid(w, params) {
		return
	}
	if err := s.events.Logout(r.Context(), host.UserIdentity{ID: params.UserID}); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pageAndUser resolves the page, its requested section and the acting user.
// It writes a 400 and returns false when any of them is malformed.
func (s *Server) pageAndUser(w http.ResponseWriter, r *http.Request) (host.Page, host.UserIdentity, bool) {
	doc, ok := s.document(w, r)
	if !ok {
		return host.Page{}, host.UserIdentity{}, false
	}

	user := userParams{Name: strings.TrimSpace(r.Header.Get(UserNameHeader))}
	if raw := r.Header.Get(UserIDHeader); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "invalid user id", err.Error())
			return host.Page{}, host.UserIdentity{}, false
		}
		user.ID = id
	}
	if !s.valid(w, user) {
		return host.Page{}, host.UserIdentity{}, false
	}

	if err := r.ParseForm(); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid form", err.Error())
		return host.Page{}, host.UserIdentity{}, false
	}
	page := host.NewPage(doc.DocumentID, r.URL.Query(), r.PostForm)
	return page, host.UserIdentity{ID: user.ID, DisplayName: user.Name}, true
}

func (s *Server) document(w http.ResponseWriter, r *http.Request) (documentParams, bool) {
	id, err := parseID(chi.URLParam(r, "documentID"))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid document id", err.Error())
		return documentParams{}, false
	}
	params := documentParams{DocumentID: id}
	return params, s.valid(w, params)
}

func (s *Server) valid(w http.ResponseWriter, params interface{}) bool {
	err := s.validate.Struct(params)
	if err == nil {
		return true
	}
	messages := []string{}
	if errs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range errs {
			messages = append(messages, fmt.Sprintf("field '%s' failed on the '%s' tag", fe.Field(), fe.Tag()))
		}
	} else {
		messages = append(messages, err.Error())
	}
	writeErrorResponse(w, http.StatusBadRequest, "validation failed", messages...)
	return false
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", raw)
	}
	return id, nil
}
