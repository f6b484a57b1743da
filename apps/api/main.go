package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/bhoidhruv/ddquest/apps/api/echo"
	"github.com/bhoidhruv/ddquest/core"
	"github.com/bhoidhruv/ddquest/core/identity"
	"github.com/bhoidhruv/ddquest/core/material"
	"github.com/bhoidhruv/ddquest/core/profile"
	"github.com/bhoidhruv/ddquest/core/quiz"
	"github.com/bhoidhruv/ddquest/core/session"
	emailsvc "github.com/bhoidhruv/ddquest/services/email"
	googleauthsvc "github.com/bhoidhruv/ddquest/services/googleauth"
	logsvc "github.com/bhoidhruv/ddquest/services/logger"
	fsblob "github.com/bhoidhruv/ddquest/storage/blob/fs"
	"github.com/bhoidhruv/ddquest/storage/document"
	inmemdoc "github.com/bhoidhruv/ddquest/storage/document/inmem"
	pgdoc "github.com/bhoidhruv/ddquest/storage/document/postgres"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up stores
	db, closeDB, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = closeDB(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	blobs, err := fsblob.Open(conf.Blob.RootDir, conf.Blob.BaseURL)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up blob store: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	identitySvc := identity.NewService(conf, identity.NewRepository(db), mailSvc, googleauthsvc.NewVerifier(conf))
	profileSvc := profile.NewService(db)
	materialSvc := material.NewService(db, blobs, logger)
	quizSvc := quiz.NewService(db, profileSvc, logger)
	resolver := session.NewResolver(conf, profileSvc, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	identity.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			IdentitySvc: identitySvc,
			ProfileSvc:  profileSvc,
			MaterialSvc: materialSvc,
			QuizSvc:     quizSvc,
			Resolver:    resolver,
			Blobs:       blobs,
			Validate:    validate,
			Translator:  translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpDB opens the configured document store. Anything but postgres degrades
// to the in-memory store (dev only).
func setUpDB(conf *core.Config) (document.Store, func() error, error) {
	if conf.Database.Engine != "postgres" {
		return inmemdoc.Open(), func() error { return nil }, nil
	}

	if err := pgdoc.CreateIfNotExist(conf); err != nil {
		return nil, nil, err
	}
	store, err := pgdoc.Open(conf)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
