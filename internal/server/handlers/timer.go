package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/circa10a/countdown/api"
	"github.com/circa10a/countdown/internal/server/database"
	"github.com/circa10a/countdown/internal/server/middleware"
	"github.com/circa10a/countdown/internal/timer"
)

// Error messages
const (
	errInvalidName    = "Invalid timer name"
	errLimitValue     = "Invalid limit value"
	errTimerNotFound  = "Timer not found"
	errStorageError   = "Storage error"
	errStoreConflict  = "Timers were modified concurrently, retry"
	errContextPayload = "Internal context error"
)

// Send all unless specified.
const defaultLimit = -1

// TimerService runs timer mutations and reads against the store.
type TimerService interface {
	Submit(ctx context.Context, op timer.Op) (timer.Set, error)
	Timers(ctx context.Context) (timer.Set, error)
}

// EventLister returns recorded expiries, newest first.
type EventLister interface {
	List(limit int) []api.Expiry
}

// Timer handles countdown timer requests.
type Timer struct {
	Service TimerService
	Events  EventLister
	Logger  *slog.Logger
}

// GetHandleFunc lists every timer sorted by name.
func (t *Timer) GetHandleFunc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	timers, err := t.Service.Timers(r.Context())
	if err != nil {
		t.sendStoreError(w, err)
		return
	}

	views := make([]api.Timer, 0, len(timers))
	for _, name := range timers.Names() {
		views = append(views, toView(name, timers[name]))
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(views)
}

// GetByNameHandleFunc retrieves a single timer by its name.
func (t *Timer) GetByNameHandleFunc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	name, err := nameParam(r)
	if err != nil {
		t.sendError(w, http.StatusBadRequest, errInvalidName, err)
		return
	}

	timers, err := t.Service.Timers(r.Context())
	if err != nil {
		t.sendStoreError(w, err)
		return
	}

	found, ok := timers[name]
	if !ok {
		t.sendError(w, http.StatusNotFound, errTimerNotFound, nil)
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(toView(name, found))
}

// PostHandleFunc creates a countdown timer.
func (t *Timer) PostHandleFunc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	payload, ok := middleware.FromContext[api.NewTimer](r.Context())
	if !ok {
		t.sendError(w, http.StatusInternalServerError, errContextPayload, nil)
		return
	}

	timers, err := t.Service.Submit(r.Context(), timer.AddOp{
		Name:         payload.Name,
		TotalSeconds: payload.TotalSeconds(),
		Loop:         payload.Loop,
	})
	if err != nil {
		t.sendStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toView(payload.Name, timers[payload.Name]))
}

// PutLoopHandleFunc turns looping on or off for an existing timer.
func (t *Timer) PutLoopHandleFunc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	name, err := nameParam(r)
	if err != nil {
		t.sendError(w, http.StatusBadRequest, errInvalidName, err)
		return
	}

	payload, ok := middleware.FromContext[api.LoopUpdate](r.Context())
	if !ok || payload.Loop == nil {
		t.sendError(w, http.StatusInternalServerError, errContextPayload, nil)
		return
	}

	timers, err := t.Service.Submit(r.Context(), timer.SetLoopOp{Name: name, Loop: *payload.Loop})
	if err != nil {
		t.sendStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(toView(name, timers[name]))
}

// DeleteHandleFunc removes a timer. Removing a missing timer is not an error.
func (t *Timer) DeleteHandleFunc(w http.ResponseWriter, r *http.Request) {
	name, err := nameParam(r)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		t.sendError(w, http.StatusBadRequest, errInvalidName, err)
		return
	}

	_, err = t.Service.Submit(r.Context(), timer.RemoveOp{Name: name})
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		t.sendStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// EventsHandleFunc lists recent expiries, newest first.
func (t *Timer) EventsHandleFunc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	limit := defaultLimit

	if l := r.URL.Query().Get("limit"); l != "" {
		val, err := strconv.Atoi(l)
		if err != nil || val < 0 {
			t.sendError(w, http.StatusBadRequest, errLimitValue, err)
			return
		}
		limit = val
	}

	events := t.Events.List(limit)
	if events == nil {
		events = []api.Expiry{}
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(events)
}

// nameParam reads the escaped {name} path segment and unescapes it.
func nameParam(r *http.Request) (string, error) {
	var name string

	err := runtime.BindStyledParameterWithOptions("simple", "name", chi.URLParam(r, "name"), &name, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return "", err
	}

	return name, nil
}

// sendStoreError maps engine and storage errors to a status code.
func (t *Timer) sendStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, timer.ErrDurationZero), errors.Is(err, timer.ErrEmptyName):
		t.sendError(w, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, timer.ErrDuplicateName):
		t.sendError(w, http.StatusConflict, err.Error(), err)
	case errors.Is(err, timer.ErrNotFound):
		t.sendError(w, http.StatusNotFound, errTimerNotFound, err)
	case errors.Is(err, database.ErrConflict):
		t.sendError(w, http.StatusConflict, errStoreConflict, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		t.sendError(w, http.StatusServiceUnavailable, err.Error(), err)
	default:
		t.sendError(w, http.StatusInternalServerError, errStorageError, err)
	}
}

func (t *Timer) sendError(w http.ResponseWriter, code int, publicMsg string, internalErr error) {
	if code >= http.StatusInternalServerError {
		t.Logger.Error(publicMsg, "error", internalErr)
	}

	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(api.Error{
		Code:    code,
		Message: publicMsg,
	})
}

func toView(name string, t timer.Timer) api.Timer {
	return api.Timer{
		Name:                 name,
		TotalSeconds:         t.TotalSeconds,
		SecondsLeft:          t.SecondsLeft,
		Loop:                 t.Loop,
		Active:               t.Active,
		ExpiredNoticePending: t.NoticePending,
		Remaining:            t.Remaining(),
		Progress:             t.Progress(),
	}
}
