package quiz

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bhoidhruv/ddquest/core"
)

// Subjects is the fixed rotation the daily quiz cycles through.
var Subjects = []string{"Mathematics", "Physics", "Chemistry", "English", "Aptitude"}

// Kind distinguishes the quiz activities offered to students.
type Kind string

const (
	KindDaily  Kind = "daily"
	KindMock   Kind = "mock"
	KindWeekly Kind = "weekly"
)

func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindDaily, KindMock, KindWeekly:
		return Kind(s), true
	}
	return "", false
}

// SubjectOfDay returns the rotation subject for the given day.
func SubjectOfDay(t time.Time) string {
	return Subjects[t.YearDay()%len(Subjects)]
}

// WeeklyAvailable reports whether the weekly test is open; it runs on
// weekends only.
func WeeklyAvailable(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// WeeklyProgress converts a streak into the dashboard's weekly percentage.
func WeeklyProgress(streak int) int {
	p := streak * 100 / 7
	if p > 100 {
		return 100
	}
	return p
}

// ID returns the quiz identifier for a kind and day, e.g. "daily_2026-08-28".
func ID(kind Kind, t time.Time) string {
	return fmt.Sprintf("%s_%s", kind, t.Format("2006-01-02"))
}

type (
	// Question as rendered by the clients; Answer is the index into Options
	// and Time the per-question limit in seconds.
	Question struct {
		Question string   `json:"question"`
		Options  []string `json:"options"`
		Answer   int      `json:"answer"`
		Time     int      `json:"time"`
	}

	Quiz struct {
		ID        string     `json:"id"`
		Kind      Kind       `json:"kind"`
		Subject   string     `json:"subject"`
		Date      string     `json:"date"` // YYYY-MM-DD
		Questions []Question `json:"questions"`
	}

	// NewQuiz is the admin binding for publishing a quiz.
	NewQuiz struct {
		Kind      string     `json:"kind" validate:"required,oneof=daily mock weekly"`
		Date      string     `json:"date,omitempty"` // defaults to today
		Subject   string     `json:"subject" validate:"required"`
		Questions []Question `json:"questions" validate:"required,min=1,dive"`
	}

	// Submission is a completed attempt reported by a client.
	Submission struct {
		QuizID string `json:"quizId" validate:"required"`
		Score  int    `json:"score" validate:"min=0"`
		Total  int    `json:"total" validate:"required,min=1"`
	}

	// Score is the immutable attempt record stored in the "scores"
	// collection; Timestamp is unix milliseconds as the clients expect.
	Score struct {
		ID        string `json:"id,omitempty"`
		UserID    string `json:"userId"`
		QuizID    string `json:"quizId"`
		Score     int    `json:"score"`
		Total     int    `json:"total"`
		Timestamp int64  `json:"timestamp"`
	}
)

func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.Subject = core.CleanString(nq.Subject)
	if err := validate.Struct(nq); err != nil {
		return err
	}
	if nq.Date != "" {
		if _, err := time.Parse("2006-01-02", nq.Date); err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "date", Error: "date must be YYYY-MM-DD"})
		}
	}
	for i, q := range nq.Questions {
		if q.Answer < 0 || q.Answer >= len(q.Options) {
			return core.NewValidationError(nil, core.FieldError{
				Field: fmt.Sprintf("questions[%d].answer", i),
				Error: "answer must index one of the options",
			})
		}
	}
	return nil
}

func (s *Submission) Validate(validate *validator.Validate) error {
	s.QuizID = core.CleanString(s.QuizID)
	if err := validate.Struct(s); err != nil {
		return err
	}
	if s.Score > s.Total {
		return core.NewValidationError(nil, core.FieldError{Field: "score", Error: "score cannot exceed total"})
	}
	return nil
}
