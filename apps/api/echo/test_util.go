package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/bhoidhruv/ddquest/core"
	"github.com/bhoidhruv/ddquest/core/identity"
	"github.com/bhoidhruv/ddquest/core/material"
	"github.com/bhoidhruv/ddquest/core/profile"
	"github.com/bhoidhruv/ddquest/core/quiz"
	"github.com/bhoidhruv/ddquest/core/session"
	emailsvc "github.com/bhoidhruv/ddquest/services/email"
	logsvc "github.com/bhoidhruv/ddquest/services/logger"
	"github.com/bhoidhruv/ddquest/storage/blob"
	fsblob "github.com/bhoidhruv/ddquest/storage/blob/fs"
	"github.com/bhoidhruv/ddquest/storage/document"
	inmemdoc "github.com/bhoidhruv/ddquest/storage/document/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

// testEnv wires a full server against in-memory stores.
type testEnv struct {
	conf        *core.Config
	db          document.Store
	blobs       blob.Store
	mailSvc     core.EmailService
	identitySvc identity.Service
	profileSvc  profile.Service
	materialSvc material.Service
	quizSvc     quiz.Service
	resolver    *session.Resolver
	server      Server
}

func initTestEnv(t *testing.T) *testEnv {
	conf := core.NewTestConfig()
	conf.Debug = false // error responses must not leak internals

	logger := logsvc.NewStdLogger(log.New(ioutil.Discard, "", 0))
	core.ParseEmailTemplates(conf, logger)
	emailsvc.ResetSentMessages()

	blobs, err := fsblob.Open(t.TempDir(), "http://localhost:8000/v1/files")
	if err != nil {
		t.Fatalf("initTestEnv() failed: %v", err)
	}

	db := inmemdoc.Open()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	verifier := identity.VerifierMock{Tokens: map[string]identity.GoogleClaims{
		"g00d-t0ken": {Subject: "g-123", Email: "goog@test.test", Name: "Goog User", EmailVerified: true},
	}}
	identitySvc := identity.NewServiceMock(conf, identity.NewRepository(db), mailSvc, verifier)
	profileSvc := profile.NewService(db)
	materialSvc := material.NewService(db, blobs, logger)
	quizSvc := quiz.NewService(db, profileSvc, logger)
	resolver := session.NewResolver(conf, profileSvc, logger)

	validate := validator.New()
	translator := newTestTranslator()
	core.InitValidators(validate, translator)
	identity.InitValidators(validate, translator)

	env := &testEnv{
		conf:        conf,
		db:          db,
		blobs:       blobs,
		mailSvc:     mailSvc,
		identitySvc: identitySvc,
		profileSvc:  profileSvc,
		materialSvc: materialSvc,
		quizSvc:     quizSvc,
		resolver:    resolver,
	}
	env.server = NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		IdentitySvc:    identitySvc,
		ProfileSvc:     profileSvc,
		MaterialSvc:    materialSvc,
		QuizSvc:        quizSvc,
		Resolver:       resolver,
		Blobs:          blobs,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	return env
}

func newTestTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// createIdentity registers a verified account ready to log in.
func (env *testEnv) createIdentity(t *testing.T, name, email, pwd string) identity.Identity {
	ctx := context.Background()
	ident, err := env.identitySvc.Register(ctx, identity.NewIdentity{
		Name:            name,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
	})
	if err != nil {
		t.Fatalf("createIdentity() failed: %v", err)
	}
	ident.EmailVerified = true
	doc := document.Document{"email_verified": true}
	if err := env.db.Collection(document.Identities).Update(ctx, ident.UID, doc); err != nil {
		t.Fatalf("createIdentity() failed: %v", err)
	}
	if _, err := env.resolver.Register(ctx, ident, "", ""); err != nil {
		t.Fatalf("createIdentity() failed: %v", err)
	}
	return ident
}

func (env *testEnv) createAdmin(t *testing.T, name, email, pwd string) identity.Identity {
	ident := env.createIdentity(t, name, email, pwd)
	if err := env.profileSvc.MarkAdmin(context.Background(), ident.UID); err != nil {
		t.Fatalf("createAdmin() failed: %v", err)
	}
	return ident
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newUploadRequest builds a multipart request with the given form fields and
// a single file part.
func newUploadRequest(t *testing.T, method, path, token string, fields map[string]string, fileField, fileName string, file []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("newUploadRequest() failed: %v", err)
		}
	}
	fw, err := w.CreateFormFile(fileField, fileName)
	if err != nil {
		t.Fatalf("newUploadRequest() failed: %v", err)
	}
	if _, err := fw.Write(file); err != nil {
		t.Fatalf("newUploadRequest() failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("newUploadRequest() failed: %v", err)
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, ident identity.Identity, role session.Role) string {
	token, err := GenerateToken(GetSessionClaims(ident, role))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
