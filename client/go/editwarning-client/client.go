// client/go/editwarning-client/client.go
package editwarningclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultTimeout         = 5 * time.Second
	defaultRefreshInterval = 3 * time.Minute
)

// Decision kinds returned by the service.
const (
	KindGranted                     = "granted"
	KindRefreshed                   = "refreshed"
	KindConflictArticle             = "conflict_article"
	KindConflictSection             = "conflict_section"
	KindConflictArticleFromSections = "conflict_article_from_sections"
	KindTransitionToSection         = "transition_to_section"
	KindTransitionToArticle         = "transition_to_article"
	KindAnonymousNoLock             = "anonymous_no_lock"
)

// Lock is one held edit lock.
type Lock struct {
	DocumentID int64     `json:"documentId"`
	Section    int       `json:"section"`
	UserID     int64     `json:"userId"`
	UserName   string    `json:"userName"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

// Decision is the outcome of an edit attempt.
type Decision struct {
	Kind       string `json:"kind"`
	DocumentID int64  `json:"documentId"`
	Section    int    `json:"section"`
	Lock       *Lock  `json:"lock,omitempty"`
}

// Conflict reports whether someone else holds the requested scope.
func (d Decision) Conflict() bool {
	switch d.Kind {
	case KindConflictArticle, KindConflictSection, KindConflictArticleFromSections:
		return true
	}
	return false
}

// Notice is a message key and its parameters, ready for translation.
type Notice struct {
	Key    string   `json:"key"`
	Params []string `json:"params"`
}

// Outcome answers an edit attempt.
type Outcome struct {
	Decision Decision `json:"decision"`
	Notice   *Notice  `json:"notice,omitempty"`
}

// LockSet is the lock state of a document.
type LockSet struct {
	DocumentID int64  `json:"documentId"`
	Article    *Lock  `json:"article,omitempty"`
	Sections   []Lock `json:"sections"`
}

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Messages   []string `json:"errors"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("editwarning: status %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
}

// Unavailable reports whether the lock store could not be reached. Editing
// may go on without lock protection.
func (e *APIError) Unavailable() bool {
	return e.StatusCode == http.StatusServiceUnavailable
}

// EditWarningClient talks to the editwarning HTTP service on behalf of one user.
type EditWarningClient struct {
	baseURL         *url.URL
	httpClient      *http.Client
	userID          int64
	userName        string
	refreshInterval time.Duration

	mu          sync.Mutex
	refreshStop chan struct{}
	refreshWG   sync.WaitGroup
	lastOutcome *Outcome
}

// Option configures an EditWarningClient
type Option func(*EditWarningClient)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(e *EditWarningClient) {
		if c != nil {
			e.httpClient = c
		}
	}
}

// WithUser sets the acting user. Without it requests are anonymous.
func WithUser(id int64, name string) Option {
	return func(e *EditWarningClient) {
		e.userID = id
		e.userName = name
	}
}

// WithRefreshInterval sets how often StartRefresh renews the lock.
func WithRefreshInterval(d time.Duration) Option {
	return func(e *EditWarningClient) {
		if d > 0 {
			e.refreshInterval = d
		}
	}
}

// NewEditWarningClient creates a client for the service at address ("host:port" or a URL).
func NewEditWarningClient(address string, opts ...Option) (*EditWarningClient, error) {
	if address == "" {
		return nil, errors.New("server address cannot be empty")
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	base, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("invalid server address: %w", err)
	}

	client := &EditWarningClient{
		baseURL:         base,
		httpClient:      &http.Client{Timeout: defaultTimeout},
		refreshInterval: defaultRefreshInterval,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.userID < 0 {
		return nil, errors.New("user id cannot be negative")
	}
	return client, nil
}

// Close stops a running refresh loop
func (c *EditWarningClient) Close() error {
	c.StopRefresh()
	return nil
}

// Edit reports an edit attempt on a document. Section 0 edits the whole document.
func (c *EditWarningClient) Edit(ctx context.Context, documentID int64, section int) (*Outcome, error) {
	query := url.Values{}
	if section > 0 {
		query.Set("section", strconv.Itoa(section))
	}
	var out Outcome
	if err := c.do(ctx, http.MethodPost, documentPath(documentID, "edit"), query, &out); err != nil {
		return nil, fmt.Errorf("failed to evaluate edit: %w", err)
	}
	return &out, nil
}

// Save releases the user's locks after a successful save.
func (c *EditWarningClient) Save(ctx context.Context, documentID int64) error {
	if err := c.do(ctx, http.MethodPost, documentPath(documentID, "save"), nil, nil); err != nil {
		return fmt.Errorf("failed to report save: %w", err)
	}
	return nil
}

// Cancel releases the user's locks on an abandoned edit and returns the confirmation notice.
func (c *EditWarningClient) Cancel(ctx context.Context, documentID int64) (*Notice, error) {
	var out struct {
		Notice *Notice `json:"notice"`
	}
	if err := c.do(ctx, http.MethodPost, documentPath(documentID, "cancel"), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to report cancel: %w", err)
	}
	return out.Notice, nil
}

// Logout releases every lock of the configured user.
func (c *EditWarningClient) Logout(ctx context.Context) error {
	if c.userID <= 0 {
		return nil
	}
	path := "/api/v1/users/" + strconv.FormatInt(c.userID, 10) + "/logout"
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	return nil
}

// Locks returns the current locks of a document.
func (c *EditWarningClient) Locks(ctx context.Context, documentID int64) (*LockSet, error) {
	var set LockSet
	if err := c.do(ctx, http.MethodGet, documentPath(documentID, "locks"), nil, &set); err != nil {
		return nil, fmt.Errorf("failed to get locks: %w", err)
	}
	return &set, nil
}

// LastOutcome returns the latest outcome seen by the refresh loop, or nil.
func (c *EditWarningClient) LastOutcome() *Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastOutcome
}

// StartRefresh repeats the edit attempt in the background so the lock does not
// expire while the editor stays open. The loop ends on a conflict or an error,
// after which StartRefresh may be called again. A failed attempt leaves
// LastOutcome unchanged.
func (c *EditWarningClient) StartRefresh(ctx context.Context, documentID int64, section int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refreshStop != nil {
		return errors.New("refresh is already running")
	}

	stop := make(chan struct{})
	c.refreshStop = stop
	c.refreshWG.Add(1)

	go func() {
		defer c.refreshWG.Done()
		defer func() {
			c.mu.Lock()
			if c.refreshStop == stop {
				c.refreshStop = nil
			}
			c.mu.Unlock()
		}()

		ticker := time.NewTicker(c.refreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				refreshCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
				out, err := c.Edit(refreshCtx, documentID, section)
				cancel()

				if err != nil {
					return
				}

				c.mu.Lock()
				c.lastOutcome = out
				c.mu.Unlock()

				if out.Decision.Conflict() {
					return
				}
			}
		}
	}()

	return nil
}

// StopRefresh stops the background refresh loop
func (c *EditWarningClient) StopRefresh() {
	c.mu.Lock()
	stop := c.refreshStop
	c.refreshStop = nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		c.refreshWG.Wait()
	}
}

func documentPath(documentID int64, action string) string {
	return "/api/v1/documents/" + strconv.FormatInt(documentID, 10) + "/" + action
}

func (c *EditWarningClient) do(ctx context.Context, method, path string, query url.Values, out interface{}) error {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.userID > 0 {
		req.Header.Set("X-User-Id", strconv.FormatInt(c.userID, 10))
		req.Header.Set("X-User-Name", c.userName)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(body, apiErr) != nil || len(apiErr.Messages) == 0 {
			apiErr.Messages = []string{strings.TrimSpace(string(body))}
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}
