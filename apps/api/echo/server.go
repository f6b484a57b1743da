package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/bhoidhruv/ddquest/core"
	"github.com/bhoidhruv/ddquest/core/identity"
	"github.com/bhoidhruv/ddquest/core/material"
	"github.com/bhoidhruv/ddquest/core/profile"
	"github.com/bhoidhruv/ddquest/core/quiz"
	"github.com/bhoidhruv/ddquest/core/session"
	"github.com/bhoidhruv/ddquest/storage/blob"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		IdentitySvc    identity.Service
		ProfileSvc     profile.Service
		MaterialSvc    material.Service
		QuizSvc        quiz.Service
		Resolver       *session.Resolver
		Blobs          blob.Store
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(context.Context) error
		Close() error
	}

	server struct {
		deps        ServerDeps
		app         *echo.Echo
		errors      chan error
		shutdownSig chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:        deps,
		app:         echo.New(),
		errors:      make(chan error, 1),
		shutdownSig: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdownSig, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := ConfigureAuth(
		conf.AppName,
		conf.SecretKey,
		conf.Server.JWTExpirationDelta,
		conf.Server.JWTRefreshExpirationDelta,
	)

	registerAccountAPI(v1, jwt, s.deps.IdentitySvc, s.deps.Resolver, s.deps.Validate)
	registerDashboardAPI(v1, jwt, s.deps.ProfileSvc)
	registerMeAPI(v1, jwt, s.deps.IdentitySvc, s.deps.ProfileSvc, s.deps.MaterialSvc, s.deps.Resolver, s.deps.Validate)
	registerQuizAPI(v1, jwt, s.deps.QuizSvc, s.deps.Validate)
	registerMaterialAPI(v1, jwt, s.deps.MaterialSvc, s.deps.Validate)
	registerFilesAPI(v1, s.deps.Blobs)
	registerAdminAPI(v1, jwt, s.deps.ProfileSvc, s.deps.MaterialSvc, s.deps.QuizSvc, s.deps.Validate)

	// TODO: swagger !!
}

func (s *server) Start() {
	s.errors <- s.app.Start(s.deps.Conf.Server.Addr)
}

func (s *server) Errors() <-chan error { return s.errors }

// ShutdownSignal is notified on SIGINT/SIGTERM and on integrity errors
// raised by the error handler.
func (s *server) ShutdownSignal() <-chan os.Signal { return s.shutdownSig }

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) signalShutdown() {
	s.shutdownSig <- syscall.SIGTERM
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to DDQuest API!")
}
