package main

import (
	"errors"
	"fmt"
	"testing"

	"interviewmic/internal/domain"
	"interviewmic/internal/usecase"
)

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:        "Startup failed",
		domain.ErrorCodeSessionStart:   "Could not start the interview",
		domain.ErrorCodeSessionAnswer:  "Could not submit your answer",
		domain.ErrorCodeSessionEnd:     "Could not finish the interview",
		domain.ErrorCodeAuth:           "Authentication failed",
		domain.ErrorCodeClipboard:      "Clipboard write failed",
		domain.ErrorCodeVoiceDisabled:  "Voice unavailable",
		domain.ErrorCodeRequestPending: "Please wait",
	}
	for code, want := range cases {
		code := code
		want := want
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("quota"); got != "Error (quota)" {
		t.Fatalf("unexpected fallback: %q", got)
	}
}

func TestRequireReady(t *testing.T) {
	t.Parallel()

	app := &App{}
	if err := app.requireReady(); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected uninitialized error, got %v", err)
	}

	bootErr := errors.New("boot")
	app.bootErr = bootErr
	if err := app.requireReady(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error, got %v", err)
	}
}

func TestQueriesWhenNotInitialized(t *testing.T) {
	t.Parallel()

	app := NewApp()
	if state := app.GetInterviewState(); state.Phase != domain.PhaseTopicSelection || state.Session != nil {
		t.Fatalf("unexpected state: %+v", state)
	}
	if view := app.GetChatView(); view.Messages == nil || len(view.Messages) != 0 {
		t.Fatalf("expected empty message list, got %+v", view)
	}
	if topics := app.ListTopics(); topics == nil || len(topics) != 0 {
		t.Fatalf("expected empty topic list, got %v", topics)
	}
	if app.CurrentUser() != nil {
		t.Fatalf("expected no user")
	}
	if info := app.GetRuntimeInfo(); len(info) != 0 {
		t.Fatalf("expected empty runtime info, got %v", info)
	}

	app.bootErr = errors.New("missing config")
	if info := app.GetRuntimeInfo(); info["error"] != "missing config" {
		t.Fatalf("expected boot error in runtime info, got %v", info)
	}
}

func TestActionsFailBeforeStartup(t *testing.T) {
	t.Parallel()

	app := NewApp()
	actions := map[string]func() error{
		"start":   func() error { return app.StartInterview("go", "technical") },
		"send":    func() error { return app.SendMessage("hello") },
		"skip":    app.SkipQuestion,
		"end":     app.EndInterview,
		"reset":   app.ResetInterview,
		"mic":     app.ToggleMic,
		"call":    app.ToggleCall,
		"copy":    app.CopySummary,
		"logout":  app.Logout,
		"dismiss": app.DismissSpeechError,
	}
	for name, action := range actions {
		if err := action(); !errors.Is(err, errNotInitialized) {
			t.Fatalf("%s: expected uninitialized error, got %v", name, err)
		}
	}
	if _, err := app.Login("a@b.c", "pw"); !errors.Is(err, errNotInitialized) {
		t.Fatalf("login: expected uninitialized error, got %v", err)
	}
}

func TestErrorPassthroughHelpers(t *testing.T) {
	t.Parallel()

	app := &App{}
	wrapped := fmt.Errorf("answer: %w", usecase.ErrRequestInFlight)
	if err := app.pending(wrapped); !errors.Is(err, usecase.ErrRequestInFlight) {
		t.Fatalf("pending should return the error unchanged, got %v", err)
	}
	if err := app.pending(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := app.voice(usecase.ErrVoiceUnavailable); !errors.Is(err, usecase.ErrVoiceUnavailable) {
		t.Fatalf("voice should return the error unchanged, got %v", err)
	}
}
