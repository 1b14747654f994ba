package ports

import (
	"context"
	"io"
	"time"

	"interviewmic/internal/domain"
)

// StartResult is the typed response of a session start call.
type StartResult struct {
	SessionID       string
	Topic           string
	StartedAt       time.Time
	CurrentQuestion string
}

// FeedbackRecord is one per-answer evaluation returned by the backend.
type FeedbackRecord struct {
	Score            float64
	Strengths        []string
	Improvements     []string
	DetailedFeedback string
}

// AnswerResult is the typed response of an answer submission.
type AnswerResult struct {
	NextQuestion    string
	HasNextQuestion bool
	Feedback        []FeedbackRecord
	FeedbackText    string
}

// EndResult is the typed response of a session end call.
type EndResult struct {
	OverallScore        *float64
	Summary             string
	SummaryStrengths    []string
	SummaryImprovements []string
	Feedback            []FeedbackRecord
	EndedAt             time.Time
}

// SessionAPI drives an interview session on the backend.
type SessionAPI interface {
	StartSession(ctx context.Context, topic string, kind string) (StartResult, error)
	SubmitAnswer(ctx context.Context, sessionID string, answer string) (AnswerResult, error)
	EndSession(ctx context.Context, sessionID string) (EndResult, error)
}

// AuthAPI authenticates users against the backend.
type AuthAPI interface {
	Login(ctx context.Context, email string, password string) (string, error)
	Signup(ctx context.Context, email string, name string, password string) (string, error)
	Me(ctx context.Context, token string) (domain.User, error)
}

// TokenStore keeps the bearer token across application runs.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	Language       string
	InterimResults bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// RecognitionConfig mirrors the knobs of a continuous recognizer.
type RecognitionConfig struct {
	Language       string
	Continuous     bool
	InterimResults bool
}

// RecognitionSession is one run of a continuous recognizer. Events ends with a
// single end event and is then closed.
type RecognitionSession interface {
	Events() <-chan domain.RecognitionEvent
	Stop() error
}

// RecognitionProvider starts recognition sessions against the microphone.
type RecognitionProvider interface {
	StartRecognition(ctx context.Context, cfg RecognitionConfig) (RecognitionSession, error)
}

// SpeechEngine speaks one utterance and returns once it finished or ctx is done.
type SpeechEngine interface {
	Speak(ctx context.Context, utterance domain.Utterance) error
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	InterviewChanged(state domain.InterviewState)
	ChatChanged(view domain.ChatView)
	RecognitionChanged(status domain.RecognitionStatus)
	SpeakingChanged(speaking bool)
	CallStatusChanged(active bool)
	UserChanged(user *domain.User)
	Notify(notification domain.Notification)
}
