package domain

import "time"

// Phase gates which screen is active.
type Phase string

const (
	PhaseTopicSelection Phase = "topic-selection"
	PhaseInterview      Phase = "interview"
	// PhaseFeedback is declared for a per-question feedback screen; no transition enters it.
	PhaseFeedback Phase = "feedback"
	PhaseSummary  Phase = "summary"
)

// SessionStatus is the lifecycle status of one interview attempt.
type SessionStatus string

const (
	SessionStatusNotStarted SessionStatus = "not-started"
	SessionStatusInProgress SessionStatus = "in-progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusPaused     SessionStatus = "paused"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Rating is derived from a feedback score.
type Rating string

const (
	RatingPoor      Rating = "poor"
	RatingFair      Rating = "fair"
	RatingGood      Rating = "good"
	RatingExcellent Rating = "excellent"
)

// RatingForScore maps a 0-10 score onto a rating band.
func RatingForScore(score float64) Rating {
	switch {
	case score >= 8:
		return RatingExcellent
	case score >= 6:
		return RatingGood
	case score >= 4:
		return RatingFair
	default:
		return RatingPoor
	}
}

type Question struct {
	ID               string     `json:"id"`
	Text             string     `json:"text"`
	Topic            string     `json:"topic"`
	Difficulty       Difficulty `json:"difficulty"`
	ExpectedDuration int        `json:"expectedDuration"` // minutes
}

type Answer struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"questionId"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	Duration   int       `json:"duration"` // seconds
}

type Feedback struct {
	ID               string   `json:"id"`
	AnswerID         string   `json:"answerId"`
	Score            float64  `json:"score"`
	Strengths        []string `json:"strengths"`
	Improvements     []string `json:"improvements"`
	DetailedFeedback string   `json:"detailedFeedback"`
	OverallRating    Rating   `json:"overallRating"`
}

// InterviewSession is one attempt, created by a successful start call.
type InterviewSession struct {
	ID                   string        `json:"id"`
	Topic                string        `json:"topic"`
	StartTime            time.Time     `json:"startTime"`
	EndTime              *time.Time    `json:"endTime,omitempty"`
	Status               SessionStatus `json:"status"`
	Questions            []Question    `json:"questions"`
	Answers              []Answer      `json:"answers"`
	Feedback             []Feedback    `json:"feedback"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	OverallScore         *float64      `json:"overallScore,omitempty"`
	Summary              string        `json:"summary,omitempty"`
	SummaryStrengths     []string      `json:"summaryStrengths,omitempty"`
	SummaryImprovements  []string      `json:"summaryImprovements,omitempty"`
}

// CurrentQuestion returns the question under the index pointer, if any.
func (s *InterviewSession) CurrentQuestion() (Question, bool) {
	if s == nil || s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentQuestionIndex], true
}

// Clone returns a copy that shares no slices or pointers with s.
func (s *InterviewSession) Clone() *InterviewSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Questions = append([]Question(nil), s.Questions...)
	out.Answers = append([]Answer(nil), s.Answers...)
	out.Feedback = make([]Feedback, len(s.Feedback))
	for i, fb := range s.Feedback {
		fb.Strengths = append([]string(nil), fb.Strengths...)
		fb.Improvements = append([]string(nil), fb.Improvements...)
		out.Feedback[i] = fb
	}
	out.SummaryStrengths = append([]string(nil), s.SummaryStrengths...)
	out.SummaryImprovements = append([]string(nil), s.SummaryImprovements...)
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	if s.OverallScore != nil {
		score := *s.OverallScore
		out.OverallScore = &score
	}
	return &out
}

// InterviewState is the client-side view of the interview flow.
type InterviewState struct {
	Session        *InterviewSession `json:"session"`
	Phase          Phase             `json:"phase"`
	Recording      bool              `json:"recording"`
	AvatarSpeaking bool              `json:"avatarSpeaking"`
	Loading        bool              `json:"loading"`
}

// Topic is one selectable interview subject.
type Topic struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	Description   string `json:"description" yaml:"description"`
	Difficulty    string `json:"difficulty" yaml:"difficulty"`
	EstimatedTime string `json:"estimatedTime" yaml:"estimated_time"`
	Icon          string `json:"icon" yaml:"icon"`
}

// User is the signed-in profile.
type User struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageURL string `json:"imageUrl,omitempty"`
}
