package echoapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bhoidhruv/ddquest/core/quiz"
	"github.com/bhoidhruv/ddquest/core/session"
	"github.com/bhoidhruv/ddquest/storage/document"
)

func newQuizFixture(kind quiz.Kind) quiz.NewQuiz {
	return quiz.NewQuiz{
		Kind:    string(kind),
		Subject: quiz.SubjectOfDay(time.Now()),
		Questions: []quiz.Question{
			{Question: "2 + 2 = ?", Options: []string{"3", "4", "5"}, Answer: 1, Time: 30},
			{Question: "3 * 3 = ?", Options: []string{"6", "9", "12"}, Answer: 1, Time: 30},
		},
	}
}

func Test_quizApi_today(t *testing.T) {
	env := initTestEnv(t)
	ident := env.createIdentity(t, "Awe Some", "awe@some.com", "passwd1")
	token := getToken(t, ident, session.RoleStudent)

	if _, err := env.quizSvc.Create(context.Background(), newQuizFixture(quiz.KindDaily)); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	t.Run("requires auth", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/quizzes/daily")
		env.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("unknown kind is not found", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/quizzes/bogus", token)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("code = %v; want %v", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("returns today's quiz", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/quizzes/daily", token)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var q quiz.Quiz
		if err := json.Unmarshal(rec.Body.Bytes(), &q); err != nil {
			t.Fatalf("unmarshalling Quiz: %v", err)
		}
		if want := quiz.ID(quiz.KindDaily, time.Now()); q.ID != want {
			t.Errorf("id = %q; want %q", q.ID, want)
		}
		if len(q.Questions) != 2 {
			t.Errorf("questions = %d; want 2", len(q.Questions))
		}
	})

	t.Run("no quiz for today is not found", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/quizzes/mock", token)
		env.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusNotFound, wantData: []byte(`{"error":"quiz not found"}`)}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_quizApi_submit(t *testing.T) {
	env := initTestEnv(t)
	ident := env.createIdentity(t, "Awe Some", "awe@some.com", "passwd1")
	token := getToken(t, ident, session.RoleStudent)

	if _, err := env.quizSvc.Create(context.Background(), newQuizFixture(quiz.KindDaily)); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	t.Run("score cannot exceed total", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/quizzes/daily/submit", token, []byte(`{"score": 3, "total": 2}`))
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want %v: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})

	t.Run("daily submission bumps the streak", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/quizzes/daily/submit", token, []byte(`{"score": 2, "total": 2}`))
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusCreated, rec.Body.String())
		}

		var resp struct {
			Score  quiz.Score `json:"score"`
			Streak int        `json:"streak"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if resp.Streak != 1 {
			t.Errorf("streak = %d; want 1", resp.Streak)
		}
		if want := quiz.ID(quiz.KindDaily, time.Now()); resp.Score.QuizID != want {
			t.Errorf("quizId = %q; want defaulted %q", resp.Score.QuizID, want)
		}
		if resp.Score.Timestamp == 0 {
			t.Error("timestamp not set")
		}

		prof, err := env.profileSvc.Get(context.Background(), ident.UID)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if prof.Streak != 1 {
			t.Errorf("profile streak = %d; want 1", prof.Streak)
		}
	})

	t.Run("mock submission leaves the streak alone", func(t *testing.T) {
		body := []byte(fmt.Sprintf(`{"quizId": %q, "score": 1, "total": 2}`, quiz.ID(quiz.KindMock, time.Now())))
		req, rec := newAuthRequest(http.MethodPost, "/v1/quizzes/mock/submit", token, body)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		prof, err := env.profileSvc.Get(context.Background(), ident.UID)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if prof.Streak != 1 {
			t.Errorf("profile streak = %d; want unchanged 1", prof.Streak)
		}
	})

	t.Run("scores are listed newest first", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/quizzes/scores", token)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var scores []quiz.Score
		if err := json.Unmarshal(rec.Body.Bytes(), &scores); err != nil {
			t.Fatalf("unmarshalling scores: %v", err)
		}
		if len(scores) != 2 {
			t.Fatalf("scores = %d; want 2", len(scores))
		}
		if scores[0].Timestamp < scores[1].Timestamp {
			t.Error("scores not sorted newest first")
		}
	})
}

func Test_adminApi_createQuiz(t *testing.T) {
	env := initTestEnv(t)
	student := env.createIdentity(t, "Stu Dent", "stu@dent.com", "passwd1")
	admin := env.createAdmin(t, "Admin", "admin@test.test", "passwd1")

	body := marchallObj(t, newQuizFixture(quiz.KindDaily))

	t.Run("students are refused", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/quizzes", getToken(t, student, session.RoleStudent), body)
		env.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: []byte(`{"error":"permission denied"}`)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("admins create the quiz of the day", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/quizzes", getToken(t, admin, session.RoleAdmin), body)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
	})

	t.Run("duplicate day is refused", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/quizzes", getToken(t, admin, session.RoleAdmin), body)
		env.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: []byte(`{"error":"a quiz with this id already exists"}`)}
		checkCodeAndData(t, tt, rec)
	})

	// the admin marker check is live: a revoked admin is cut off even with
	// a token claiming the admin role
	t.Run("revoked marker cuts access", func(t *testing.T) {
		if err := env.db.Collection(document.Admins).Delete(context.Background(), admin.UID); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/quizzes", getToken(t, admin, session.RoleAdmin), body)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v; want %v: %s", rec.Code, http.StatusForbidden, rec.Body.String())
		}
	})
}
