package domain

// RecognitionState models the speech recognition lifecycle.
type RecognitionState string

const (
	RecognitionIdle      RecognitionState = "idle"
	RecognitionStarting  RecognitionState = "starting"
	RecognitionListening RecognitionState = "listening"
	RecognitionStopping  RecognitionState = "stopping"
)

// RecognitionErrorCode mirrors the error vocabulary of continuous recognizers.
type RecognitionErrorCode string

const (
	RecognitionErrNotAllowed   RecognitionErrorCode = "not-allowed"
	RecognitionErrNetwork      RecognitionErrorCode = "network"
	RecognitionErrNoSpeech     RecognitionErrorCode = "no-speech"
	RecognitionErrAborted      RecognitionErrorCode = "aborted"
	RecognitionErrAudioCapture RecognitionErrorCode = "audio-capture"
)

// Critical reports whether listening cannot continue after this error.
func (c RecognitionErrorCode) Critical() bool {
	return c == RecognitionErrNotAllowed || c == RecognitionErrNetwork
}

type RecognitionError struct {
	Code   RecognitionErrorCode `json:"code"`
	Detail string               `json:"detail,omitempty"`
}

func (e RecognitionError) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Detail
}

// RecognitionEventKind identifies a recognition stream event.
type RecognitionEventKind string

const (
	RecognitionEventStart  RecognitionEventKind = "start"
	RecognitionEventResult RecognitionEventKind = "result"
	RecognitionEventError  RecognitionEventKind = "error"
	RecognitionEventEnd    RecognitionEventKind = "end"
)

// SpeechSegment is one recognized fragment; Final fragments will not change again.
type SpeechSegment struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// RecognitionEvent is emitted by a recognition session.
type RecognitionEvent struct {
	Kind     RecognitionEventKind `json:"kind"`
	Segments []SpeechSegment      `json:"segments,omitempty"`
	Error    *RecognitionError    `json:"error,omitempty"`
}

// RecognitionStatus is what the UI shows about the microphone.
type RecognitionStatus struct {
	State     RecognitionState     `json:"state"`
	Interim   string               `json:"interim"`
	ErrorCode RecognitionErrorCode `json:"errorCode,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// TranscriptKind identifies whether a provider event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent is incremental output from a streaming transcription provider.
type TranscriptEvent struct {
	Kind          TranscriptKind `json:"kind"`
	Text          string         `json:"text"`
	IsSpeechFinal bool           `json:"isSpeechFinal"`
}

// Utterance is one text-to-speech request.
type Utterance struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Rate     float64 `json:"rate"`
	Pitch    float64 `json:"pitch"`
	Volume   float64 `json:"volume"`
}

type Sender string

const (
	SenderAI   Sender = "ai"
	SenderUser Sender = "user"
)

// ChatMessage is rebuilt client-side each session; HTML is the rendered markdown.
type ChatMessage struct {
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
	HTML   string `json:"html,omitempty"`
}

// ChatView is the full state of the chat surface.
type ChatView struct {
	Messages       []ChatMessage `json:"messages"`
	Revealing      *ChatMessage  `json:"revealing,omitempty"`
	Thinking       bool          `json:"thinking"`
	Draft          string        `json:"draft"`
	CallActive     bool          `json:"callActive"`
	VoiceAvailable bool          `json:"voiceAvailable"`
	VoiceMessage   string        `json:"voiceMessage,omitempty"`
}

// ErrorCode identifies the source of a user-visible notification.
type ErrorCode string

const (
	ErrorCodeStartup        ErrorCode = "startup"
	ErrorCodeSessionStart   ErrorCode = "session_start"
	ErrorCodeSessionAnswer  ErrorCode = "session_answer"
	ErrorCodeSessionEnd     ErrorCode = "session_end"
	ErrorCodeAuth           ErrorCode = "auth"
	ErrorCodeClipboard      ErrorCode = "clipboard"
	ErrorCodeVoiceDisabled  ErrorCode = "voice_disabled"
	ErrorCodeRequestPending ErrorCode = "request_pending"
)

// Notification is a transient toast.
type Notification struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Code        ErrorCode `json:"code,omitempty"`
	Error       bool      `json:"error"`
}
