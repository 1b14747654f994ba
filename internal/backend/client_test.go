package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestStartSession(t *testing.T) {
	t.Parallel()

	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/session/start" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, `{"sessionId":17,"topic":"Go","startedAt":"2024-03-01T10:00:00Z","currentQuestion":"What is a goroutine?","nextQuestion":"ignored"}`)
	}))
	defer server.Close()

	client := New(server.URL+"/api/", server.Client())
	result, err := client.StartSession(context.Background(), " Go ", "technical")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if got["topic"] != "Go" || got["type"] != "technical" {
		t.Fatalf("unexpected request body: %v", got)
	}
	if result.SessionID != "17" || result.Topic != "Go" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.CurrentQuestion != "What is a goroutine?" {
		t.Fatalf("currentQuestion must win over nextQuestion, got %q", result.CurrentQuestion)
	}
	if !result.StartedAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start time: %v", result.StartedAt)
	}
}

func TestStartSessionOmitsEmptyType(t *testing.T) {
	t.Parallel()

	var raw string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		raw = string(body)
		_, _ = io.WriteString(w, `{"sessionId":"abc","nextQuestion":"Q1"}`)
	}))
	defer server.Close()

	result, err := New(server.URL, server.Client()).StartSession(context.Background(), "Go", "")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if raw != `{"topic":"Go"}` {
		t.Fatalf("unexpected request body: %s", raw)
	}
	if result.SessionID != "abc" || result.CurrentQuestion != "Q1" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestStartSessionRequiresQuestion(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"sessionId":1,"currentQuestion":"  "}`)
	}))
	defer server.Close()

	_, err := New(server.URL, server.Client()).StartSession(context.Background(), "Go", "")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestSubmitAnswerSendsNumericSessionID(t *testing.T) {
	t.Parallel()

	var raw string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		raw = string(body)
		_, _ = io.WriteString(w, `{"sessionId":17,"currentQuestion":"What is a channel?","feedback":"Good use of examples."}`)
	}))
	defer server.Close()

	result, err := New(server.URL, server.Client()).SubmitAnswer(context.Background(), "17", "Lightweight threads")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if raw != `{"sessionId":17,"answer":"Lightweight threads"}` {
		t.Fatalf("unexpected request body: %s", raw)
	}
	if !result.HasNextQuestion || result.NextQuestion != "What is a channel?" {
		t.Fatalf("unexpected next question: %+v", result)
	}
	if result.FeedbackText != "Good use of examples." || len(result.Feedback) != 0 {
		t.Fatalf("string feedback must become feedback text: %+v", result)
	}
}

func TestSubmitAnswerFeedbackRecords(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"nextQuestion":"","feedback":[{"score":7.5,"strengths":["clear"],"detailedFeedback":"Nice."}],"feedbackText":"Overall good."}`)
	}))
	defer server.Close()

	result, err := New(server.URL, server.Client()).SubmitAnswer(context.Background(), "s-1", "answer")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.HasNextQuestion {
		t.Fatalf("empty question must mean no next question")
	}
	if result.FeedbackText != "Overall good." {
		t.Fatalf("unexpected feedback text: %q", result.FeedbackText)
	}
	if len(result.Feedback) != 1 {
		t.Fatalf("expected one record, got %d", len(result.Feedback))
	}
	record := result.Feedback[0]
	if record.Score != 7.5 || record.DetailedFeedback != "Nice." || len(record.Strengths) != 1 {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.Improvements == nil {
		t.Fatalf("missing improvements must become an empty slice")
	}
}

func TestSubmitAnswerRejectsOutOfRangeScore(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"feedback":{"score":42}}`)
	}))
	defer server.Close()

	_, err := New(server.URL, server.Client()).SubmitAnswer(context.Background(), "1", "answer")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestSubmitAnswerRequiresAnswer(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	if _, err := New(server.URL, server.Client()).SubmitAnswer(context.Background(), "1", ""); err == nil {
		t.Fatalf("expected validation error")
	}
	if calls.Load() != 0 {
		t.Fatalf("invalid request must not reach the server")
	}
}

func TestEndSession(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session/end" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"sessionId":3,"endedAt":1709287200.5,"summary":"Strong answers.","overallScore":8.25,"summaryStrengths":["depth"],"summaryImprovements":["pace","examples"],"strengths":["ignored"]}`)
	}))
	defer server.Close()

	result, err := New(server.URL, server.Client()).EndSession(context.Background(), "3")
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if result.OverallScore == nil || *result.OverallScore != 8.25 {
		t.Fatalf("unexpected score: %v", result.OverallScore)
	}
	if result.Summary != "Strong answers." {
		t.Fatalf("unexpected summary: %+v", result)
	}
	if len(result.SummaryStrengths) != 1 || result.SummaryStrengths[0] != "depth" {
		t.Fatalf("unexpected summary strengths: %v", result.SummaryStrengths)
	}
	if len(result.SummaryImprovements) != 2 || result.SummaryImprovements[1] != "examples" {
		t.Fatalf("unexpected summary improvements: %v", result.SummaryImprovements)
	}
	want := time.Unix(1709287200, 500000000).UTC()
	if !result.EndedAt.Equal(want) {
		t.Fatalf("unexpected end time: %v", result.EndedAt)
	}
}

func TestStatusErrorCarriesBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, "Session ID and answer are required")
	}))
	defer server.Close()

	_, err := New(server.URL, server.Client()).EndSession(context.Background(), "9")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadRequest || statusErr.Body != "Session ID and answer are required" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}

func TestMalformedBodyIsInvalidResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"sessionId":`)
	}))
	defer server.Close()

	_, err := New(server.URL, server.Client()).StartSession(context.Background(), "Go", "")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestLoginAndMe(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			_, _ = io.WriteString(w, `{"token":"jwt-1","email":"ada@example.com","name":"Ada"}`)
		case "/auth/me":
			if r.Header.Get("Authorization") != "Bearer jwt-1" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, "Invalid token")
				return
			}
			_, _ = io.WriteString(w, `{"token":"jwt-1","email":"ada@example.com","name":"Ada"}`)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := New(server.URL, server.Client())
	token, err := client.Login(context.Background(), "ada@example.com", "secret")
	if err != nil || token != "jwt-1" {
		t.Fatalf("unexpected login result: %q %v", token, err)
	}

	user, err := client.Me(context.Background(), token)
	if err != nil {
		t.Fatalf("me failed: %v", err)
	}
	if user.Name != "Ada" || user.Email != "ada@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	_, err = client.Me(context.Background(), "other")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
}

func TestLoginValidatesEmail(t *testing.T) {
	t.Parallel()

	client := New("http://127.0.0.1:1", nil)
	if _, err := client.Login(context.Background(), "not-an-email", "secret"); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestSignupReturnsPlainText(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "Signup successful\n")
	}))
	defer server.Close()

	message, err := New(server.URL, server.Client()).Signup(context.Background(), "ada@example.com", "Ada", "secret")
	if err != nil || message != "Signup successful" {
		t.Fatalf("unexpected signup result: %q %v", message, err)
	}
}

func TestSessionIDMarshal(t *testing.T) {
	t.Parallel()

	tests := map[sessionID]string{
		"42":    `42`,
		"abc-1": `"abc-1"`,
	}
	for id, want := range tests {
		got, err := json.Marshal(id)
		if err != nil || string(got) != want {
			t.Fatalf("marshal %q: got %s (%v), want %s", id, got, err, want)
		}
	}
}
