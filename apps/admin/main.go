package main

import (
	"log"
	"os"

	"github.com/bhoidhruv/ddquest/core"
	"github.com/bhoidhruv/ddquest/core/identity"
	"github.com/bhoidhruv/ddquest/core/profile"
	"github.com/bhoidhruv/ddquest/core/session"
	logsvc "github.com/bhoidhruv/ddquest/services/logger"
	"github.com/bhoidhruv/ddquest/storage/document"
	inmemdoc "github.com/bhoidhruv/ddquest/storage/document/inmem"
	pgdoc "github.com/bhoidhruv/ddquest/storage/document/postgres"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up the document store
	db, closeDB, err := setUpDB(conf)
	errAndDie(err)
	defer func() { _ = closeDB() }()

	profiles := profile.NewService(db)

	// start CLI
	cli := commandLine{
		repo:     identity.NewRepository(db),
		profiles: profiles,
		resolver: session.NewResolver(conf, profiles, logsvc.NewStdLogger(logger)),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

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

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
