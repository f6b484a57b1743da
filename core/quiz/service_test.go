package quiz

import (
	"context"
	"testing"
	"time"

	"github.com/bhoidhruv/ddquest/core/profile"
	inmemdoc "github.com/bhoidhruv/ddquest/storage/document/inmem"
)

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newTestService(t *testing.T, now time.Time) (Service, profile.Service) {
	t.Helper()
	db := inmemdoc.Open()
	profiles := profile.NewService(db)
	svc := NewService(db, profiles, nopLogger{})
	svc.(*service).nowFunc = func() time.Time { return now }
	return svc, profiles
}

func TestServiceCreateAndToday(t *testing.T) {
	friday := time.Date(2026, time.August, 28, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, friday)
	ctx := context.Background()

	if _, err := svc.Today(ctx, KindDaily); err != ErrNotFound {
		t.Errorf("Today() before publishing error = %v, want %v", err, ErrNotFound)
	}

	nq := NewQuiz{
		Kind:    "daily",
		Subject: SubjectOfDay(friday),
		Questions: []Question{
			{Question: "2+2?", Options: []string{"3", "4"}, Answer: 1, Time: 30},
		},
	}
	qz, err := svc.Create(ctx, nq)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if qz.ID != "daily_2026-08-28" {
		t.Errorf("Create() id = %q", qz.ID)
	}
	if _, err = svc.Create(ctx, nq); err != ErrExists {
		t.Errorf("Create() twice error = %v, want %v", err, ErrExists)
	}

	got, err := svc.Today(ctx, KindDaily)
	if err != nil {
		t.Fatalf("Today() error = %v", err)
	}
	if got.ID != qz.ID || len(got.Questions) != 1 || got.Questions[0].Answer != 1 {
		t.Errorf("Today() = %+v", got)
	}

	// the weekly test stays closed on a Friday
	if _, err = svc.Today(ctx, KindWeekly); err != ErrNotAvailable {
		t.Errorf("Today(weekly) error = %v, want %v", err, ErrNotAvailable)
	}
}

func TestServiceTodayWeeklyOnWeekend(t *testing.T) {
	saturday := time.Date(2026, time.August, 29, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, saturday)
	ctx := context.Background()

	if _, err := svc.Create(ctx, NewQuiz{
		Kind:      "weekly",
		Subject:   "Mathematics",
		Questions: []Question{{Question: "q", Options: []string{"a", "b"}, Answer: 0}},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Today(ctx, KindWeekly); err != nil {
		t.Errorf("Today(weekly) on Saturday error = %v", err)
	}
}

func TestServiceSubmit(t *testing.T) {
	now := time.Date(2026, time.August, 28, 9, 0, 0, 0, time.UTC)
	svc, profiles := newTestService(t, now)
	ctx := context.Background()
	_ = profiles.Create(ctx, "stu-1", profile.NewStudentProfile("Stu", "stu@test.test"))

	sc, streak, err := svc.Submit(ctx, "stu-1", Submission{QuizID: "daily_2026-08-28", Score: 4, Total: 5})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if sc.ID == "" || sc.UserID != "stu-1" || sc.Score != 4 || sc.Total != 5 {
		t.Errorf("Submit() score = %+v", sc)
	}
	if sc.Timestamp != now.UnixNano()/int64(time.Millisecond) {
		t.Errorf("Submit() timestamp = %d", sc.Timestamp)
	}
	if streak != 1 {
		t.Errorf("Submit() streak = %d, want 1", streak)
	}

	// mock quizzes record a score but leave the streak alone
	_, streak, err = svc.Submit(ctx, "stu-1", Submission{QuizID: "mock_2026-08-28", Score: 3, Total: 5})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if streak != 0 {
		t.Errorf("Submit(mock) streak = %d, want 0", streak)
	}
	p, _ := profiles.Get(ctx, "stu-1")
	if p.Streak != 1 {
		t.Errorf("profile streak = %d, want 1", p.Streak)
	}

	scores, err := svc.Scores(ctx, "stu-1")
	if err != nil {
		t.Fatalf("Scores() error = %v", err)
	}
	if len(scores) != 2 {
		t.Errorf("Scores() = %d records, want 2", len(scores))
	}
}

func TestServiceSubmitWithoutProfileKeepsScore(t *testing.T) {
	now := time.Date(2026, time.August, 28, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, now)
	ctx := context.Background()

	// no profile: the streak bump fails but the score is still recorded
	sc, streak, err := svc.Submit(ctx, "ghost", Submission{QuizID: "daily_2026-08-28", Score: 1, Total: 5})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if streak != 0 {
		t.Errorf("Submit() streak = %d, want 0", streak)
	}
	scores, _ := svc.Scores(ctx, "ghost")
	if len(scores) != 1 || scores[0].ID != sc.ID {
		t.Errorf("Scores() = %+v", scores)
	}
}
