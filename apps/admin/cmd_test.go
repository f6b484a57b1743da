package main

import (
	"bytes"
	"context"
	"io/ioutil"
	"log"
	"testing"

	"github.com/bhoidhruv/ddquest/core"
	"github.com/bhoidhruv/ddquest/core/identity"
	"github.com/bhoidhruv/ddquest/core/profile"
	"github.com/bhoidhruv/ddquest/core/session"
	logsvc "github.com/bhoidhruv/ddquest/services/logger"
	inmemdoc "github.com/bhoidhruv/ddquest/storage/document/inmem"
)

var (
	repo     identity.Repository
	profiles profile.Service
)

func setup(t *testing.T) *commandLine {
	conf := core.NewTestConfig()
	db := inmemdoc.Open()
	repo = identity.NewRepository(db)
	profiles = profile.NewService(db)

	return &commandLine{
		repo:     repo,
		profiles: profiles,
		resolver: session.NewResolver(conf, profiles, logsvc.NewStdLogger(log.New(ioutil.Discard, "", 0))),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_createIdentity(t *testing.T) {
	cli := setup(t)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"createidentity"}, wantErr: errHelp},
		{name: "name and email but no password", args: []string{"createidentity", "-name", "Awe", "-email", "awe@test.cd"}, wantErr: errHelp},
		{name: "create", args: []string{"createidentity", "-name", "Awe", "-email", "Awe@Test.cd"}, extra: extra{pwd: "mdr"}},
		{name: "create admin", args: []string{"createidentity", "-name", "Boss", "-email", "boss@test.cd", "-admin"}, extra: extra{pwd: "mdr"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
		})
	}

	ctx := context.Background()

	ident, err := repo.GetIdentityByEmail(ctx, "awe@test.cd")
	if err != nil {
		t.Fatalf("GetIdentityByEmail() failed: %v", err)
	}
	if !ident.EmailVerified {
		t.Error("operator-created account not verified")
	}
	if err := ident.CheckPassword("mdr"); err != nil {
		t.Error("password not set")
	}
	if _, err := profiles.Get(ctx, ident.UID); err != nil {
		t.Errorf("profile not provisioned: %v", err)
	}

	boss, err := repo.GetIdentityByEmail(ctx, "boss@test.cd")
	if err != nil {
		t.Fatalf("GetIdentityByEmail() failed: %v", err)
	}
	if ok, err := profiles.IsAdmin(ctx, boss.UID); err != nil || !ok {
		t.Errorf("IsAdmin() = %v, %v; want marker set", ok, err)
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	ident := identity.Identity{Name: "Awe", Email: "awe@test.cd", EmailVerified: true}
	if err := ident.SetPassword("mdr"); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}
	ident, err := repo.CreateIdentity(context.Background(), ident)
	if err != nil {
		t.Fatalf("CreateIdentity() failed: %v", err)
	}

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.cd"}, wantErr: errHelp},
		{name: "account not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, extra: extra{pwd: "lol"}, wantErr: identity.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", ident.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshed, err := repo.GetIdentityByUID(context.Background(), ident.UID)
				if err != nil {
					t.Fatalf("GetIdentityByUID() failed: %v", err)
				}
				if bytes.Equal(refreshed.PasswordHash, ident.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_grantAdmin(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	ident, err := repo.CreateIdentity(ctx, identity.Identity{Name: "Awe", Email: "awe@test.cd"})
	if err != nil {
		t.Fatalf("CreateIdentity() failed: %v", err)
	}
	if err := profiles.Create(ctx, ident.UID, profile.NewStudentProfile(ident.Name, ident.Email)); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	tests := []cliTest{
		{name: "no args", args: []string{"grantadmin"}, wantErr: errHelp},
		{name: "account not found", args: []string{"grantadmin", "-email", "lol@test.cd"}, wantErr: identity.ErrNotFound},
		{name: "grant", args: []string{"grantadmin", "-email", "awe@test.cd"}},
		{name: "grant is idempotent", args: []string{"grantadmin", "-email", "awe@test.cd"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil && err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if ok, err := profiles.IsAdmin(ctx, ident.UID); err != nil || !ok {
		t.Fatalf("IsAdmin() = %v, %v; want marker set", ok, err)
	}
	prof, err := profiles.Get(ctx, ident.UID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if prof.Semester != profile.AdminSemester || prof.Branch != profile.AdminBranch || !prof.IsAdmin() {
		t.Errorf("profile = %+v; want admin shape", prof)
	}
}
