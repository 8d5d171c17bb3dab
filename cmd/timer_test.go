package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/circa10a/countdown/api"
)

// executeCommand is a helper to run cobra commands and capture output
func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return buf.String(), err
}

func Test_AddCommand(t *testing.T) {
	// Setup a mock server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/timers" {
			t.Errorf("expected path %q, got %q", "/timers", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected method %q, got %q", http.MethodPost, r.Method)
		}

		var body api.NewTimer
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Name != "Boss" {
			t.Errorf("expected name %q, got %q", "Boss", body.Name)
		}
		if body.TotalSeconds() != 90 {
			t.Errorf("expected %d seconds, got %d", 90, body.TotalSeconds())
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(api.Timer{
			Name:         body.Name,
			TotalSeconds: body.TotalSeconds(),
			SecondsLeft:  body.TotalSeconds(),
			Loop:         body.Loop,
			Active:       true,
			Remaining:    "01:30",
		})
	}))
	defer server.Close()

	output, err := executeCommand("timer", "add", "--name", "Boss", "-m", "1", "-s", "30", "--loop", "--url", server.URL, "--color=false")

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(output, `"remaining": "01:30"`) {
		t.Errorf("expected output to contain %q, got %q", `"remaining": "01:30"`, output)
	}
	if !strings.Contains(output, `"loop": true`) {
		t.Errorf("expected output to contain %q, got %q", `"loop": true`, output)
	}
}

func Test_GetCommand_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/timers/Tea Time" {
			t.Errorf("expected path %q, got %q", "/timers/Tea Time", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(api.Error{
			Code:    404,
			Message: "Timer not found",
		})
	}))
	defer server.Close()

	output, err := executeCommand("timer", "get", "Tea Time", "--url", server.URL, "--color=false")

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(output, `"message": "Timer not found"`) {
		t.Errorf("expected output to contain %q, got %q", `"message": "Timer not found"`, output)
	}
}

func Test_LoopCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/timers/Boss/loop" {
			t.Errorf("expected path %q, got %q", "/timers/Boss/loop", r.URL.Path)
		}
		if r.Method != http.MethodPut {
			t.Errorf("expected method %q, got %q", http.MethodPut, r.Method)
		}

		var body api.LoopUpdate
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Loop == nil || *body.Loop {
			t.Errorf("expected loop to be false")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(api.Timer{Name: "Boss", Loop: false})
	}))
	defer server.Close()

	output, err := executeCommand("timer", "loop", "Boss", "--enabled=false", "--url", server.URL, "--color=false", "-o", "yaml")

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "name: Boss") {
		t.Errorf("expected output to contain %q, got %q", "name: Boss", output)
	}
	if !strings.Contains(output, "loop: false") {
		t.Errorf("expected output to contain %q, got %q", "loop: false", output)
	}
}

func Test_RemoveCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected method %q, got %q", http.MethodDelete, r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	output, err := executeCommand("timer", "remove", "Boss", "--url", server.URL, "--color=false", "-o", "json")

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "Success") {
		t.Errorf("expected output to contain %q, got %q", "Success", output)
	}
}

func Test_EventsCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" {
			t.Errorf("expected path %q, got %q", "/events", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Errorf("expected limit %q, got %q", "2", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode([]api.Expiry{{Name: "Boss"}})
	}))
	defer server.Close()

	output, err := executeCommand("timer", "events", "--limit", "2", "--url", server.URL, "--color=false")

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(output, `"name": "Boss"`) {
		t.Errorf("expected output to contain %q, got %q", `"name": "Boss"`, output)
	}
}

func Test_InvalidURL(t *testing.T) {
	_, err := executeCommand("timer", "get", "--url", "localhost", "--color=false")
	if err == nil {
		t.Error("expected an error for a URL without scheme")
	}
}
