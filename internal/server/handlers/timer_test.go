package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circa10a/countdown/api"
	"github.com/circa10a/countdown/internal/server/database"
	"github.com/circa10a/countdown/internal/server/middleware"
	"github.com/circa10a/countdown/internal/timer"
)

// fakeService applies ops to an in-memory set.
type fakeService struct {
	mu     sync.Mutex
	timers timer.Set
	err    error
}

func (f *fakeService) Submit(ctx context.Context, op timer.Op) (timer.Set, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	next, errs := timer.Apply(f.timers, op)
	f.timers = next
	return next.Clone(), errs[0]
}

func (f *fakeService) Timers(ctx context.Context) (timer.Set, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return f.timers.Clone(), nil
}

type fakeEvents []api.Expiry

func (f fakeEvents) List(limit int) []api.Expiry {
	if limit <= 0 || limit > len(f) {
		return f
	}
	return f[:limit]
}

// setupTestRouter wires a Timer handler the same way the server does.
func setupTestRouter(t *testing.T, svc *fakeService, events EventLister) http.Handler {
	t.Helper()

	h := &Timer{
		Service: svc,
		Events:  events,
		Logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	v := validator.New()

	router := chi.NewRouter()
	router.Use(middleware.EscapedRoutePath)
	router.Get("/api/v1/timers", h.GetHandleFunc)
	router.With(middleware.BodyValidator[api.NewTimer](v)).Post("/api/v1/timers", h.PostHandleFunc)
	router.Get("/api/v1/timers/{name}", h.GetByNameHandleFunc)
	router.With(middleware.BodyValidator[api.LoopUpdate](v)).Put("/api/v1/timers/{name}/loop", h.PutLoopHandleFunc)
	router.Delete("/api/v1/timers/{name}", h.DeleteHandleFunc)
	router.Get("/api/v1/events", h.EventsHandleFunc)

	return router
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) api.Error {
	t.Helper()

	var apiErr api.Error
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
	return apiErr
}

func TestPostHandleFunc(t *testing.T) {
	svc := &fakeService{timers: timer.Set{}}
	router := setupTestRouter(t, svc, fakeEvents{})

	t.Run("successfully creates a timer", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/timers", api.NewTimer{Name: "Boss", Minutes: 1, Seconds: 30, Loop: true})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got api.Timer
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, api.Timer{
			Name:         "Boss",
			TotalSeconds: 90,
			SecondsLeft:  90,
			Loop:         true,
			Active:       true,
			Remaining:    "01:30",
			Progress:     0,
		}, got)
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/timers", api.NewTimer{Name: "Boss", Seconds: 5})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, 90, svc.timers["Boss"].TotalSeconds, "original timer is untouched")
	})

	t.Run("zero duration is rejected", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/timers", api.NewTimer{Name: "Nothing"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec).Message, "duration")
		assert.NotContains(t, svc.timers, "Nothing")
	})

	t.Run("invalid seconds are rejected", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/timers", api.NewTimer{Name: "Bad", Seconds: 75})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetHandleFunc(t *testing.T) {
	svc := &fakeService{timers: timer.Set{
		"b": {TotalSeconds: 10, SecondsLeft: 5, Active: true},
		"a": {TotalSeconds: 60, SecondsLeft: 0, NoticePending: true},
	}}
	router := setupTestRouter(t, svc, fakeEvents{})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/timers", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []api.Timer
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.True(t, got[0].ExpiredNoticePending)
	assert.Equal(t, 1.0, got[0].Progress)
	assert.Equal(t, "b", got[1].Name)
	assert.Equal(t, "00:05", got[1].Remaining)

	t.Run("empty list is an empty array", func(t *testing.T) {
		router := setupTestRouter(t, &fakeService{timers: timer.Set{}}, fakeEvents{})
		rec := doRequest(t, router, http.MethodGet, "/api/v1/timers", nil)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("storage errors are 500", func(t *testing.T) {
		router := setupTestRouter(t, &fakeService{err: &database.CorruptError{Source: "test", Err: io.ErrUnexpectedEOF}}, fakeEvents{})
		rec := doRequest(t, router, http.MethodGet, "/api/v1/timers", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, errStorageError, decodeError(t, rec).Message)
	})
}

func TestGetByNameHandleFunc(t *testing.T) {
	svc := &fakeService{timers: timer.Set{
		"a/b":   {TotalSeconds: 10, SecondsLeft: 10, Active: true},
		"Teeé": {TotalSeconds: 3, SecondsLeft: 1, Active: true},
	}}
	router := setupTestRouter(t, svc, fakeEvents{})

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expectedName   string
	}{
		{name: "escaped slash", path: "/api/v1/timers/a%2Fb", expectedStatus: http.StatusOK, expectedName: "a/b"},
		{name: "unicode", path: "/api/v1/timers/Tee%C3%A9", expectedStatus: http.StatusOK, expectedName: "Teeé"},
		{name: "missing", path: "/api/v1/timers/ghost", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodGet, tt.path, nil)
			require.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())

			if tt.expectedStatus == http.StatusOK {
				var got api.Timer
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
				assert.Equal(t, tt.expectedName, got.Name)
			}
		})
	}
}

func TestPutLoopHandleFunc(t *testing.T) {
	svc := &fakeService{timers: timer.Set{
		"a": {TotalSeconds: 10, SecondsLeft: 4, Active: true},
	}}
	router := setupTestRouter(t, svc, fakeEvents{})

	rec := doRequest(t, router, http.MethodPut, "/api/v1/timers/a/loop", map[string]bool{"loop": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got api.Timer
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.True(t, got.Loop)
	assert.Equal(t, 4, got.SecondsLeft, "loop change leaves the countdown alone")

	rec = doRequest(t, router, http.MethodPut, "/api/v1/timers/ghost/loop", map[string]bool{"loop": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodPut, "/api/v1/timers/a/loop", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteHandleFunc(t *testing.T) {
	svc := &fakeService{timers: timer.Set{
		"a": {TotalSeconds: 10, SecondsLeft: 4, Active: true},
	}}
	router := setupTestRouter(t, svc, fakeEvents{})

	rec := doRequest(t, router, http.MethodDelete, "/api/v1/timers/a", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, svc.timers)

	rec = doRequest(t, router, http.MethodDelete, "/api/v1/timers/a", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, "deleting a missing timer is a no-op")

	t.Run("conflict is reported", func(t *testing.T) {
		router := setupTestRouter(t, &fakeService{err: database.ErrConflict}, fakeEvents{})
		rec := doRequest(t, router, http.MethodDelete, "/api/v1/timers/a", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestEventsHandleFunc(t *testing.T) {
	now := time.Now().UTC()
	events := fakeEvents{
		{Name: "b", ExpiredAt: now},
		{Name: "a", Loop: true, ExpiredAt: now.Add(-time.Second)},
	}
	router := setupTestRouter(t, &fakeService{timers: timer.Set{}}, events)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedCount  int
	}{
		{name: "all", query: "", expectedStatus: http.StatusOK, expectedCount: 2},
		{name: "limited", query: "?limit=1", expectedStatus: http.StatusOK, expectedCount: 1},
		{name: "not a number", query: "?limit=abc", expectedStatus: http.StatusBadRequest},
		{name: "negative", query: "?limit=-3", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodGet, "/api/v1/events"+tt.query, nil)
			require.Equal(t, tt.expectedStatus, rec.Code)

			if tt.expectedStatus == http.StatusOK {
				var got []api.Expiry
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
				assert.Len(t, got, tt.expectedCount)
				assert.Equal(t, "b", got[0].Name)
			}
		})
	}
}
