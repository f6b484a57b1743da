package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/bhoidhruv/ddquest/core/identity"
	"github.com/bhoidhruv/ddquest/core/profile"
	"github.com/bhoidhruv/ddquest/core/session"
	emailsvc "github.com/bhoidhruv/ddquest/services/email"
)

func Test_accountApi_register(t *testing.T) {
	env := initTestEnv(t)

	tests := []httpTest{
		{
			name:     "registration requires all fields",
			body:     []byte(`{"email": "awe@some.com"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"Name":"Name is a required field","Password":"Password is a required field","PasswordConfirm":"PasswordConfirm is a required field"}`),
		},
		{
			name:     "passwords must match",
			body:     []byte(`{"name": "Awe Some", "email": "awe@some.com", "password": "passwd1", "password_confirm": "passwd2"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"PasswordConfirm":"passwords do not match"}`),
		},
		{
			name:     "registration succeeds without a session",
			body:     []byte(`{"name": "Awe Some", "email": "awe@some.com", "password": "passwd1", "password_confirm": "passwd1", "semester": "3", "branch": "CSE"}`),
			wantCode: http.StatusCreated,
			wantData: []byte(`{"success":"Account created. Check your inbox for a verification link before logging in."}`),
		},
		{
			name:     "email must be unique",
			body:     []byte(`{"name": "Awe Some II", "email": "awe@some.com", "password": "passwd1", "password_confirm": "passwd1"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email":"an account with this email already exists"}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/auth/register", tt.body)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// the verification mail went out and the profile was provisioned
	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("expected 1 sent message, got %d", len(emailsvc.SentMessages))
	}
	ident, err := env.identitySvc.GetByEmail(context.Background(), "awe@some.com")
	if err != nil {
		t.Fatalf("GetByEmail() failed: %v", err)
	}
	prof, err := env.profileSvc.Get(context.Background(), ident.UID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if prof.Semester != "3" || prof.Branch != "CSE" {
		t.Errorf("profile = %+v; want semester 3, branch CSE", prof)
	}
}

func Test_accountApi_register_adminAllowList(t *testing.T) {
	env := initTestEnv(t)

	body := []byte(`{"name": "Dhruv", "email": "Bhoidhruv24@Gmail.com", "password": "passwd1", "password_confirm": "passwd1"}`)
	req, rec := newRequest(http.MethodPost, "/v1/auth/register", body)
	env.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	ident, err := env.identitySvc.GetByEmail(context.Background(), "bhoidhruv24@gmail.com")
	if err != nil {
		t.Fatalf("GetByEmail() failed: %v", err)
	}
	ok, err := env.profileSvc.IsAdmin(context.Background(), ident.UID)
	if err != nil {
		t.Fatalf("IsAdmin() failed: %v", err)
	}
	if !ok {
		t.Error("allow-listed email did not receive an admin marker")
	}

	prof, err := env.profileSvc.Get(context.Background(), ident.UID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if prof.Semester != profile.AdminSemester || prof.Branch != profile.AdminBranch || !prof.IsAdmin() {
		t.Errorf("allow-listed profile = %+v; want admin shape", prof)
	}
}

func Test_accountApi_login(t *testing.T) {
	env := initTestEnv(t)
	env.createIdentity(t, "Awe Some", "awe@some.com", "passwd1")

	// an unverified account
	if _, err := env.identitySvc.Register(context.Background(), identity.NewIdentity{
		Name: "New Guy", Email: "new@guy.com", Password: "passwd1", PasswordConfirm: "passwd1",
	}); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	tests := []httpTest{
		{
			name:     "unknown account fails",
			body:     []byte(`{"email": "no@body.com", "password": "passwd1"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"error":"authentication failed"}`),
		},
		{
			name:     "wrong password fails",
			body:     []byte(`{"email": "awe@some.com", "password": "wrong"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"error":"authentication failed"}`),
		},
		{
			name:     "unverified account is refused and re-mailed",
			body:     []byte(`{"email": "new@guy.com", "password": "passwd1"}`),
			wantCode: http.StatusForbidden,
			wantData: []byte(`{"error":"email address not verified; check your inbox for a verification link"}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/auth/login", tt.body)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	found := false
	for _, msg := range emailsvc.SentMessages {
		if msg.TemplateName == "email-verification" {
			found = true
		}
	}
	if !found {
		t.Error("refused login did not trigger a verification mail")
	}

	t.Run("verified account gets a token", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/auth/login", []byte(`{"email": "awe@some.com", "password": "passwd1"}`))
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var resp TokenResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling TokenResponse: %v", err)
		}
		if resp.Token == "" {
			t.Fatal("empty token")
		}

		// the token opens authed endpoints
		req, rec = newAuthRequest(http.MethodGet, "/v1/me", resp.Token)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), "awe@some.com") {
			t.Errorf("profile body = %s; want email present", rec.Body.String())
		}
	})
}

func Test_accountApi_googleLogin(t *testing.T) {
	env := initTestEnv(t)

	tests := []httpTest{
		{
			name:     "bad token fails",
			body:     []byte(`{"token": "b4d-t0ken"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"error":"invalid or expired token"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/auth/google", tt.body)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("first sign-in provisions a profile", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/auth/google", []byte(`{"token": "g00d-t0ken"}`))
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		ident, err := env.identitySvc.GetByEmail(context.Background(), "goog@test.test")
		if err != nil {
			t.Fatalf("GetByEmail() failed: %v", err)
		}
		prof, err := env.profileSvc.Get(context.Background(), ident.UID)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if prof.Semester != "Not Set" || prof.Branch != "Not Set" {
			t.Errorf("profile = %+v; want Not Set defaults", prof)
		}
	})

	t.Run("second sign-in reuses the account", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/auth/google", []byte(`{"token": "g00d-t0ken"}`))
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})
}

func Test_accountApi_verifyEmailConfirm(t *testing.T) {
	env := initTestEnv(t)

	body := []byte(`{"name": "New Guy", "email": "new@guy.com", "password": "passwd1", "password_confirm": "passwd1"}`)
	req, rec := newRequest(http.MethodPost, "/v1/auth/register", body)
	env.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("sent %d messages, want 1", len(emailsvc.SentMessages))
	}

	// fish the confirmation link out of the mail
	m := regexp.MustCompile(`uid=([^&\s]+)&token=([^&\s]+)`).FindStringSubmatch(emailsvc.SentMessages[0].TextContent)
	if m == nil {
		t.Fatal("verification mail does not contain a confirmation link")
	}
	uid, token := m[1], m[2]

	t.Run("bogus token is refused", func(t *testing.T) {
		body := marchallObj(t, identity.ConfirmEmail{UID: uid, Token: "bogus"})
		req, rec := newRequest(http.MethodPost, "/v1/auth/verify-email/confirm", body)
		env.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: []byte(`{"error":"invalid or expired token"}`)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("the mailed link verifies the account", func(t *testing.T) {
		body := marchallObj(t, identity.ConfirmEmail{UID: uid, Token: token})
		req, rec := newRequest(http.MethodPost, "/v1/auth/verify-email/confirm", body)
		env.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusOK, wantData: []byte(`{"success":"Email address verified. You can now log in."}`)}
		checkCodeAndData(t, tt, rec)

		// login now works
		req, rec = newRequest(http.MethodPost, "/v1/auth/login", []byte(`{"email": "new@guy.com", "password": "passwd1"}`))
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})
}

func Test_accountApi_passwordReset(t *testing.T) {
	env := initTestEnv(t)
	env.createIdentity(t, "Awe Some", "awe@some.com", "passwd1")

	genericMsg := `{"success":"If the email address supplied is associated with an active account on this system, ` +
		`an email will arrive in your inbox shortly with instructions to reset your password."}`

	tests := []httpTest{
		{
			name:     "unknown email is not an oracle",
			body:     []byte(`{"email": "no@body.com"}`),
			wantCode: http.StatusOK,
			wantData: []byte(genericMsg),
		},
		{
			name:     "known email gets the same answer",
			body:     []byte(`{"email": "awe@some.com"}`),
			wantCode: http.StatusOK,
			wantData: []byte(genericMsg),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/auth/password-reset", tt.body)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// exactly one reset mail went out, for the known account
	count := 0
	for _, msg := range emailsvc.SentMessages {
		if msg.TemplateName == "password-reset" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("sent %d password-reset mails; want 1", count)
	}
}

func Test_accountApi_refreshToken(t *testing.T) {
	env := initTestEnv(t)
	ident := env.createIdentity(t, "Awe Some", "awe@some.com", "passwd1")
	token := getToken(t, ident, session.RoleStudent)

	t.Run("requires auth", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/auth/token-refresh")
		env.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("issues a fresh token", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/auth/token-refresh", token)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var resp TokenResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling TokenResponse: %v", err)
		}
		if resp.Token == "" {
			t.Fatal("empty token")
		}
	})

	t.Run("expired refresh window is refused", func(t *testing.T) {
		stale := GetSessionClaims(ident, session.RoleStudent, time.Now().Add(-5*time.Hour).Unix())
		staleToken, err := GenerateToken(stale)
		if err != nil {
			t.Fatalf("GenerateToken() failed: %v", err)
		}
		req, rec := newAuthRequest(http.MethodPost, "/v1/auth/token-refresh", staleToken)
		env.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: []byte(`{"error":"refresh has expired"}`)}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_accountApi_logout(t *testing.T) {
	env := initTestEnv(t)
	ident := env.createIdentity(t, "Awe Some", "awe@some.com", "passwd1")
	token := getToken(t, ident, session.RoleStudent)

	t.Run("requires auth", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/auth/logout")
		env.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("drops the cached role", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/auth/logout", token)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("code = %v; want %v", rec.Code, http.StatusNoContent)
		}
	})
}
