package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"interviewmic/internal/domain"
	"interviewmic/internal/ports"
)

func TestNewProviderDefaults(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{})
	if p.cfg.APIBaseURL != "https://api.deepgram.com/v1" {
		t.Fatalf("unexpected base url: %q", p.cfg.APIBaseURL)
	}
	if p.cfg.Model != "nova-2" {
		t.Fatalf("unexpected model: %q", p.cfg.Model)
	}
}

func TestStartStreamingWithoutKeyIsNotAllowed(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{APIKey: " "})
	_, err := p.StartStreaming(context.Background(), ports.StreamingConfig{})
	var recErr domain.RecognitionError
	if !errors.As(err, &recErr) || recErr.Code != domain.RecognitionErrNotAllowed {
		t.Fatalf("expected not-allowed error, got %v", err)
	}
}

func TestStartStreamingClassifiesRejectedHandshake(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	p := NewProvider(Config{APIKey: "key", APIBaseURL: server.URL})
	_, err := p.StartStreaming(context.Background(), ports.StreamingConfig{})
	var recErr domain.RecognitionError
	if !errors.As(err, &recErr) || recErr.Code != domain.RecognitionErrNotAllowed {
		t.Fatalf("expected not-allowed error, got %v", err)
	}
}

func TestStartStreamingUnreachableIsNetwork(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	p := NewProvider(Config{APIKey: "key", APIBaseURL: base})
	_, err := p.StartStreaming(context.Background(), ports.StreamingConfig{})
	var recErr domain.RecognitionError
	if !errors.As(err, &recErr) || recErr.Code != domain.RecognitionErrNetwork {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestStreamRoundTrip(t *testing.T) {
	t.Parallel()

	received := make(chan string, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token key" {
			t.Errorf("unexpected auth header: %q", got)
		}
		if got := r.URL.Query().Get("language"); got != "en-GB" {
			t.Errorf("unexpected language: %q", got)
		}
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for {
			kind, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage {
				received <- "audio:" + string(payload)
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"tell me"}]}}`))
				continue
			}
			received <- string(payload)
			if strings.Contains(string(payload), "CloseStream") {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":" tell me about goroutines "}]}}`))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}))
	defer server.Close()

	p := NewProvider(Config{APIKey: "key", APIBaseURL: server.URL, Language: "en-US"})
	session, err := p.StartStreaming(context.Background(), ports.StreamingConfig{Language: "en-GB", InterimResults: true})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := session.SendAudio([]byte("pcm")); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if got := <-received; got != "audio:pcm" {
		t.Fatalf("unexpected first frame: %q", got)
	}
	if err := session.CloseSend(); err != nil {
		t.Fatalf("close send failed: %v", err)
	}

	var events []domain.TranscriptEvent
	for event := range session.Events() {
		events = append(events, event)
	}
	if err := session.Wait(); err != nil {
		t.Fatalf("unexpected wait error: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected partial and final events, got %+v", events)
	}
	if events[0].Kind != domain.TranscriptKindPartial || events[0].Text != "tell me" {
		t.Fatalf("unexpected partial: %+v", events[0])
	}
	if events[1].Kind != domain.TranscriptKindFinal || events[1].Text != "tell me about goroutines" || !events[1].IsSpeechFinal {
		t.Fatalf("unexpected final: %+v", events[1])
	}
	if got := <-received; got != closeStreamMessage {
		t.Fatalf("expected close stream message, got %q", got)
	}
}

func TestStreamSendsKeepAlive(t *testing.T) {
	t.Parallel()

	keepAlive := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		keepAlive <- string(payload)
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	p := NewProvider(Config{APIKey: "key", APIBaseURL: server.URL, KeepAlive: 10 * time.Millisecond})
	session, err := p.StartStreaming(context.Background(), ports.StreamingConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer session.Close()

	select {
	case got := <-keepAlive:
		if got != keepAliveMessage {
			t.Fatalf("unexpected keepalive payload: %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("keepalive was not sent")
	}
}

func TestStreamProviderErrorFailsWait(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Error","message":"quota exceeded"}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	p := NewProvider(Config{APIKey: "key", APIBaseURL: server.URL})
	session, err := p.StartStreaming(context.Background(), ports.StreamingConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	err = session.Wait()
	var recErr domain.RecognitionError
	if !errors.As(err, &recErr) || recErr.Code != domain.RecognitionErrNetwork || recErr.Detail != "quota exceeded" {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestBuildListenURLDefaults(t *testing.T) {
	t.Parallel()

	url, err := buildListenURL(Config{APIBaseURL: "https://api.deepgram.com/v1", Model: "nova-2"}, ports.StreamingConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"wss://api.deepgram.com/v1/listen", "encoding=linear16", "sample_rate=16000", "channels=1"} {
		if !strings.Contains(url, want) {
			t.Fatalf("expected %q in url: %s", want, url)
		}
	}
	if strings.Contains(url, "language=") {
		t.Fatalf("language should be omitted: %s", url)
	}
}

func TestBuildListenURLStreamLanguageWins(t *testing.T) {
	t.Parallel()

	url, err := buildListenURL(
		Config{APIBaseURL: "http://localhost:8080/v1/", Model: "m", Language: "en-US", SmartFormat: true},
		ports.StreamingConfig{Encoding: "linear16", SampleRate: 8000, Channels: 2, Language: "de-DE", InterimResults: true},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"ws://localhost:8080/v1/listen", "language=de-DE", "smart_format=true", "interim_results=true", "channels=2"} {
		if !strings.Contains(url, want) {
			t.Fatalf("expected %q in url: %s", want, url)
		}
	}
}

func TestBuildListenURLInvalidBase(t *testing.T) {
	t.Parallel()

	_, err := buildListenURL(Config{APIBaseURL: ":// bad"}, ports.StreamingConfig{})
	if err == nil {
		t.Fatalf("expected invalid base url error")
	}
}

func TestExtractTranscript(t *testing.T) {
	t.Parallel()

	r1 := listenResponse{}
	r1.Channel.Alternatives = []alternative{{Transcript: " channel "}}
	if got := extractTranscript(r1); got != "channel" {
		t.Fatalf("unexpected transcript from channel: %q", got)
	}

	r2 := listenResponse{}
	r2.Results.Channels = append(r2.Results.Channels, struct {
		Alternatives []alternative `json:"alternatives"`
	}{Alternatives: []alternative{{Transcript: "results"}}})
	if got := extractTranscript(r2); got != "results" {
		t.Fatalf("unexpected transcript from results: %q", got)
	}

	if got := extractTranscript(listenResponse{}); got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}
}

func TestStreamSendAudioAfterCloseSend(t *testing.T) {
	t.Parallel()

	s := &stream{sendClosed: true}
	if err := s.SendAudio([]byte("x")); err == nil {
		t.Fatalf("expected closed error")
	}
}

func TestStreamCloseSendIsIdempotent(t *testing.T) {
	t.Parallel()

	s := &stream{audio: make(chan []byte, 1)}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected second error: %v", err)
	}
}

func TestStreamSetErr(t *testing.T) {
	t.Parallel()

	s := &stream{}
	s.setErr(&websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "closed"})
	if s.waitErr() != nil {
		t.Fatalf("expected close error to be ignored")
	}

	s.setErr(errors.New("first"))
	s.setErr(errors.New("second"))
	if s.waitErr() == nil || s.waitErr().Error() != "first" {
		t.Fatalf("expected first error to win, got %v", s.waitErr())
	}

	closing := &stream{}
	closing.closing.Store(true)
	closing.setErr(errors.New("use of closed network connection"))
	if closing.waitErr() != nil {
		t.Fatalf("errors after Close should be ignored")
	}
}
