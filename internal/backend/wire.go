package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// sessionID accepts a JSON number or string and is sent back as a number
// whenever it is numeric.
type sessionID string

func (id *sessionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return err
	}
	switch v := value.(type) {
	case json.Number:
		*id = sessionID(v.String())
	case string:
		*id = sessionID(strings.TrimSpace(v))
	default:
		return fmt.Errorf("session id must be a number or string, got %s", data)
	}
	return nil
}

func (id sessionID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// wireTime accepts RFC 3339 strings or epoch seconds.
type wireTime struct {
	time.Time
}

func (t *wireTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}

	seconds, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("timestamp must be RFC 3339 or epoch seconds: %w", err)
	}
	whole, frac := math.Modf(seconds)
	t.Time = time.Unix(int64(whole), int64(frac*1e9)).UTC()
	return nil
}

// wireFeedback is either a list of evaluation records, a single record or
// a plain-text remark.
type wireFeedback struct {
	Records []wireFeedbackRecord `validate:"dive"`
	Text    string
}

func (f *wireFeedback) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = wireFeedback{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		return json.Unmarshal(data, &f.Text)
	case '[':
		return json.Unmarshal(data, &f.Records)
	case '{':
		var record wireFeedbackRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return err
		}
		f.Records = []wireFeedbackRecord{record}
		return nil
	default:
		return fmt.Errorf("unsupported feedback shape: %s", data)
	}
}

type wireFeedbackRecord struct {
	Score            float64  `json:"score" validate:"gte=0,lte=10"`
	Strengths        []string `json:"strengths"`
	Improvements     []string `json:"improvements"`
	DetailedFeedback string   `json:"detailedFeedback"`
}

type startRequest struct {
	Topic string `json:"topic" validate:"required"`
	Type  string `json:"type,omitempty"`
}

type answerRequest struct {
	SessionID sessionID `json:"sessionId" validate:"required"`
	Answer    string    `json:"answer" validate:"required"`
}

type endRequest struct {
	SessionID sessionID `json:"sessionId" validate:"required"`
}

type sessionResponse struct {
	SessionID           sessionID    `json:"sessionId"`
	Topic               string       `json:"topic"`
	StartedAt           wireTime     `json:"startedAt"`
	EndedAt             wireTime     `json:"endedAt"`
	CurrentQuestion     string       `json:"currentQuestion"`
	NextQuestion        string       `json:"nextQuestion"`
	Feedback            wireFeedback `json:"feedback"`
	FeedbackText        string       `json:"feedbackText"`
	Summary             string       `json:"summary"`
	OverallScore        *float64     `json:"overallScore" validate:"omitempty,gte=0,lte=10"`
	SummaryStrengths    []string     `json:"summaryStrengths"`
	SummaryImprovements []string     `json:"summaryImprovements"`
}

// question returns the next question text, preferring currentQuestion.
func (r sessionResponse) question() string {
	if q := strings.TrimSpace(r.CurrentQuestion); q != "" {
		return q
	}
	return strings.TrimSpace(r.NextQuestion)
}

func (r sessionResponse) feedbackText() string {
	if text := strings.TrimSpace(r.FeedbackText); text != "" {
		return text
	}
	return strings.TrimSpace(r.Feedback.Text)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token    string `json:"token"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}
