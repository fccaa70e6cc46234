// internal/server/server_test.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/avivl/editwarning/internal/coordinator"
	"github.com/avivl/editwarning/internal/host"
	"github.com/avivl/editwarning/internal/metrics"
	"github.com/avivl/editwarning/internal/notice"
	"github.com/avivl/editwarning/internal/observability"
	"github.com/avivl/editwarning/internal/store"
	"github.com/avivl/editwarning/internal/store/memory"
)

type testUser struct {
	id   int64
	name string
}

var (
	alice = testUser{7, "Alice"}
	bob   = testUser{9, "Bob"}
	anon  = testUser{}
)

func newTestServer(t *testing.T, events Events) *Server {
	t.Helper()
	logger := observability.NewNopLogger()
	m, err := observability.NewMetricsClient(observability.Config{ServiceName: "editwarning-test"}, logger)
	require.NoError(t, err)
	s, err := NewServer("127.0.0.1:0", events, logger, m)
	require.NoError(t, err)
	return s
}

func newMemoryAPI(t *testing.T) (http.Handler, *memory.Store) {
	t.Helper()
	logger := observability.NewNopLogger()
	st, err := memory.New(context.Background(), nil, logger)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	coord := coordinator.New(st, logger, coordinator.WithLockTimeout(10*time.Minute))
	events := host.NewEvents(coord, notice.Builder{Timeout: 10 * time.Minute}, logger)
	return newTestServer(t, events).Handler(), st
}

func do(t *testing.T, h http.Handler, method, target string, user testUser, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if user.id != 0 {
		req.Header.Set(UserIDHeader, fmt.Sprint(user.id))
		req.Header.Set(UserNameHeader, user.name)
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func decode[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out
}

func TestEditLifecycle(t *testing.T) {
	api, st := newMemoryAPI(t)

	res := do(t, api, http.MethodPost, "/api/v1/documents/42/edit?section=2", alice, nil)
	require.Equal(t, http.StatusOK, res.Code)
	out := decode[host.Outcome](t, res)
	assert.Equal(t, coordinator.Granted, out.Decision.Kind)
	assert.Equal(t, 2, out.Decision.Section)
	require.NotNil(t, out.Notice)
	assert.Equal(t, notice.KeyNoticeSection, out.Notice.Key)

	res = do(t, api, http.MethodPost, "/api/v1/documents/42/edit?section=2", bob, nil)
	require.Equal(t, http.StatusOK, res.Code)
	out = decode[host.Outcome](t, res)
	assert.Equal(t, coordinator.ConflictSection, out.Decision.Kind)
	require.NotNil(t, out.Decision.Lock)
	assert.Equal(t, alice.id, out.Decision.Lock.UserID)
	require.NotNil(t, out.Notice)
	assert.Equal(t, notice.KeyWarningSection, out.Notice.Key)
	assert.Equal(t, "Alice", out.Notice.Params[0])

	res = do(t, api, http.MethodGet, "/api/v1/documents/42/locks", anon, nil)
	require.Equal(t, http.StatusOK, res.Code)
	set := decode[store.LockSet](t, res)
	require.Len(t, set.Sections, 1)
	assert.Nil(t, set.Article)

	res = do(t, api, http.MethodPost, "/api/v1/documents/42/save", alice, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "save", decode[EventResponse](t, res).Event)

	loaded, err := st.Load(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, loaded.Empty())
}

func TestEditFormSectionWinsOverQuery(t *testing.T) {
	api, _ := newMemoryAPI(t)

	res := do(t, api, http.MethodPost, "/api/v1/documents/5/edit?section=3", alice, url.Values{"wpSection": {"1"}})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 1, decode[host.Outcome](t, res).Decision.Section)

	res = do(t, api, http.MethodPost, "/api/v1/documents/6/edit?section=abc", alice, nil)
	require.Equal(t, http.StatusOK, res.Code)
	out := decode[host.Outcome](t, res)
	assert.Equal(t, 0, out.Decision.Section)
	assert.Equal(t, coordinator.Granted, out.Decision.Kind)
}

func TestAnonymousEdit(t *testing.T) {
	api, st := newMemoryAPI(t)

	res := do(t, api, http.MethodPost, "/api/v1/documents/8/edit", anon, nil)
	require.Equal(t, http.StatusOK, res.Code)
	out := decode[host.Outcome](t, res)
	assert.Equal(t, coordinator.AnonymousNoLock, out.Decision.Kind)
	assert.Nil(t, out.Notice)

	loaded, err := st.Load(context.Background(), 8)
	require.NoError(t, err)
	assert.True(t, loaded.Empty())
}

func TestCancelAndLogout(t *testing.T) {
	api, st := newMemoryAPI(t)

	require.Equal(t, http.StatusOK, do(t, api, http.MethodPost, "/api/v1/documents/1/edit", alice, nil).Code)
	require.Equal(t, http.StatusOK, do(t, api, http.MethodPost, "/api/v1/documents/2/edit?section=4", alice, nil).Code)
	require.Equal(t, http.StatusOK, do(t, api, http.MethodPost, "/api/v1/documents/3/edit", bob, nil).Code)

	res := do(t, api, http.MethodPost, "/api/v1/documents/1/cancel", alice, nil)
	require.Equal(t, http.StatusOK, res.Code)
	ev := decode[EventResponse](t, res)
	assert.Equal(t, "cancel", ev.Event)
	require.NotNil(t, ev.Notice)
	assert.Equal(t, notice.KeyCanceled, ev.Notice.Key)

	res = do(t, api, http.MethodPost, "/api/v1/users/7/logout", anon, nil)
	require.Equal(t, http.StatusNoContent, res.Code)

	for doc, empty := range map[int64]bool{1: true, 2: true, 3: false} {
		loaded, err := st.Load(context.Background(), doc)
		require.NoError(t, err)
		assert.Equal(t, empty, loaded.Empty(), "document %d", doc)
	}
}

func TestBadRequests(t *testing.T) {
	api, _ := newMemoryAPI(t)

	tests := []struct {
		name   string
		method string
		target string
		header map[string]string
		want   int
	}{
		{"non_numeric_document", http.MethodPost, "/api/v1/documents/main/edit", nil, http.StatusBadRequest},
		{"zero_document", http.MethodPost, "/api/v1/documents/0/edit", nil, http.StatusBadRequest},
		{"negative_document_locks", http.MethodGet, "/api/v1/documents/-3/locks", nil, http.StatusBadRequest},
		{"bad_user_header", http.MethodPost, "/api/v1/documents/1/edit", map[string]string{UserIDHeader: "x"}, http.StatusBadRequest},
		{"negative_user", http.MethodPost, "/api/v1/documents/1/save", map[string]string{UserIDHeader: "-1"}, http.StatusBadRequest},
		{"missing_user_name", http.MethodPost, "/api/v1/documents/1/edit", map[string]string{UserIDHeader: "5"}, http.StatusBadRequest},
		{"anonymous_logout", http.MethodPost, "/api/v1/users/0/logout", nil, http.StatusBadRequest},
		{"wrong_method", http.MethodGet, "/api/v1/documents/1/edit", nil, http.StatusMethodNotAllowed},
		{"unknown_route", http.MethodGet, "/api/v1/nothing", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			res := httptest.NewRecorder()
			api.ServeHTTP(res, req)
			assert.Equal(t, tt.want, res.Code)
			if tt.want == http.StatusBadRequest {
				assert.NotEmpty(t, decode[ErrorResponse](t, res).Errors)
			}
		})
	}
}

type MockEvents struct {
	mock.Mock
}

func (m *MockEvents) EditAttempt(ctx context.Context, page host.PageIdentity, user host.UserIdentity) (host.Outcome, error) {
	args := m.Called(ctx, page, user)
	return args.Get(0).(host.Outcome), args.Error(1)
}

func (m *MockEvents) Save(ctx context.Context, page host.PageIdentity, user host.UserIdentity) error {
	return m.Called(ctx, page, user).Error(0)
}

func (m *MockEvents) Cancel(ctx context.Context, page host.PageIdentity, user host.UserIdentity) (notice.Notice, error) {
	args := m.Called(ctx, page, user)
	return args.Get(0).(notice.Notice), args.Error(1)
}

func (m *MockEvents) Logout(ctx context.Context, user host.UserIdentity) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockEvents) Locks(ctx context.Context, page host.PageIdentity) (store.LockSet, error) {
	args := m.Called(ctx, page)
	return args.Get(0).(store.LockSet), args.Error(1)
}

func TestErrorMapping(t *testing.T) {
	unavailable := fmt.Errorf("evaluate document 1: %w", store.Unavailable("update", errors.New("connection refused")))

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"store_unavailable", unavailable, http.StatusServiceUnavailable},
		{"retries_exhausted", store.ErrKeyModified, http.StatusServiceUnavailable},
		{"invalid_request", coordinator.ErrInvalidRequest, http.StatusBadRequest},
		{"page_not_found", host.ErrPageNotFound, http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := &MockEvents{}
			events.On("EditAttempt", mock.Anything, host.Page{ID: 1}, host.UserIdentity{ID: alice.id, DisplayName: alice.name}).
				Return(host.Outcome{}, tt.err).Once()
			api := newTestServer(t, events).Handler()

			res := do(t, api, http.MethodPost, "/api/v1/documents/1/edit", alice, nil)
			assert.Equal(t, tt.want, res.Code)
			body := decode[ErrorResponse](t, res)
			require.NotEmpty(t, body.Errors)
			assert.NotContains(t, body.Errors[0], "connection refused")
			events.AssertExpectations(t)
		})
	}
}

func TestLogoutFailure(t *testing.T) {
	events := &MockEvents{}
	events.On("Logout", mock.Anything, host.UserIdentity{ID: 9}).Return(store.Unavailable("remove_by_user", errors.New("down"))).Once()
	api := newTestServer(t, events).Handler()

	res := do(t, api, http.MethodPost, "/api/v1/users/9/logout", anon, nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
	events.AssertExpectations(t)
}

func TestMiddleware(t *testing.T) {
	api, _ := newMemoryAPI(t)

	t.Run("generates_request_id", func(t *testing.T) {
		res := do(t, api, http.MethodGet, "/health", anon, nil)
		require.Equal(t, http.StatusOK, res.Code)
		assert.Len(t, res.Header().Get(RequestIDHeader), 36)
		assert.Equal(t, "ok", decode[HealthResponse](t, res).Status)
	})

	t.Run("keeps_caller_request_id", func(t *testing.T) {
		id := "1b4e28ba-2fa1-11d2-883f-0016d3cca427"
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, id)
		res := httptest.NewRecorder()
		api.ServeHTTP(res, req)
		assert.Equal(t, id, res.Header().Get(RequestIDHeader))
	})

	t.Run("counts_by_route_pattern", func(t *testing.T) {
		route := "/api/v1/documents/{documentID}/locks"
		before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(route, http.MethodGet, "200"))
		do(t, api, http.MethodGet, "/api/v1/documents/11/locks", anon, nil)
		do(t, api, http.MethodGet, "/api/v1/documents/12/locks", anon, nil)
		after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(route, http.MethodGet, "200"))
		assert.Equal(t, before+2, after)
	})

	t.Run("serves_metrics", func(t *testing.T) {
		res := do(t, api, http.MethodGet, "/metrics", anon, nil)
		require.Equal(t, http.StatusOK, res.Code)
		assert.Contains(t, res.Body.String(), "editwarning_http_requests_total")
	})
}

func TestNewServerRequiresDependencies(t *testing.T) {
	logger := observability.NewNopLogger()
	m, err := observability.NewMetricsClient(observability.Config{ServiceName: "editwarning-test"}, logger)
	require.NoError(t, err)

	_, err = NewServer(":0", nil, logger, m)
	assert.Error(t, err)
	_, err = NewServer(":0", &MockEvents{}, nil, m)
	assert.Error(t, err)
	_, err = NewServer(":0", &MockEvents{}, logger, nil)
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	s := newTestServer(t, &MockEvents{})

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()
	require.Eventually(t, func() bool { return s.Addr() != nil }, time.Second, 10*time.Millisecond)

	res, err := http.Get("http://" + s.Addr().String() + "/health")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	require.NoError(t, s.Stop(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
