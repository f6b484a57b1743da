package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/bhoidhruv/ddquest/core/quiz"
	"github.com/bhoidhruv/ddquest/core/session"
)

func Test_dashboardApi(t *testing.T) {
	env := initTestEnv(t)
	ident := env.createIdentity(t, "Awe Some", "awe@some.com", "passwd1")
	token := getToken(t, ident, session.RoleStudent)

	t.Run("requires auth", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/dashboard")
		env.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("aggregates the home screen", func(t *testing.T) {
		if _, err := env.profileSvc.IncrementStreak(context.Background(), ident.UID); err != nil {
			t.Fatalf("IncrementStreak() failed: %v", err)
		}

		req, rec := newAuthRequest(http.MethodGet, "/v1/dashboard", token)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		var resp DashboardResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling DashboardResponse: %v", err)
		}
		now := time.Now()
		if resp.SubjectOfDay != quiz.SubjectOfDay(now) {
			t.Errorf("subjectOfDay = %q; want %q", resp.SubjectOfDay, quiz.SubjectOfDay(now))
		}
		if resp.Streak != 1 {
			t.Errorf("streak = %d; want 1", resp.Streak)
		}
		if want := quiz.WeeklyProgress(1); resp.WeeklyProgress != want {
			t.Errorf("weeklyProgress = %d; want %d", resp.WeeklyProgress, want)
		}
		if resp.WeeklyOpen != quiz.WeeklyAvailable(now) {
			t.Errorf("weeklyOpen = %v; want %v", resp.WeeklyOpen, quiz.WeeklyAvailable(now))
		}
		if resp.Profile.Email != "awe@some.com" {
			t.Errorf("profile email = %q; want awe@some.com", resp.Profile.Email)
		}
	})

	t.Run("a missing profile never breaks the screen", func(t *testing.T) {
		// a token whose profile doc does not exist
		ghost := ident
		ghost.UID = "gh0st"
		ghost.Name = "Ghost"
		ghost.Email = "ghost@test.test"
		req, rec := newAuthRequest(http.MethodGet, "/v1/dashboard", getToken(t, ghost, session.RoleStudent))
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var resp DashboardResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling DashboardResponse: %v", err)
		}
		if resp.Streak != 0 || resp.Completion != 0 {
			t.Errorf("streak/completion = %d/%d; want zeroed defaults", resp.Streak, resp.Completion)
		}
		if resp.Profile.Name != "Ghost" {
			t.Errorf("profile name = %q; want claims fallback", resp.Profile.Name)
		}
	})
}
