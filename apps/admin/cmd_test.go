package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/trezcool/tutorconnect/core"
	"github.com/trezcool/tutorconnect/core/user"
	logsvc "github.com/trezcool/tutorconnect/services/logger"
	"github.com/trezcool/tutorconnect/storage/database"
	inmemdb "github.com/trezcool/tutorconnect/storage/database/inmem"
	"github.com/trezcool/tutorconnect/testutil"
)

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	logger = logsvc.NewRollbarLogger(zap.NewNop(), core.NewTestConfig())

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	usrRepo = inmemdb.NewUserRepository(inmemdb.Open())

	// sql.Open does not connect: the goose runner is mocked
	db, err := sql.Open(database.EnginePostgres, "postgres://localhost/tutorconnect_test?sslmode=disable")
	if err != nil {
		t.Fatalf("sql.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return &commandLine{
		db:       db,
		usrSvc:   user.NewService(usrRepo),
		validate: validate,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

type extra struct {
	pwd string
}

func mockPassword(tt cliTest) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		if extra, ok := tt.extra.(extra); ok {
			return []byte(extra.pwd), nil
		}
		return nil, nil
	}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	t.Helper()

	switch {
	case tt.wantErr != nil:
		if errors.Cause(err) != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err == nil || err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
		}
	case err != nil:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(_ context.Context, command string, db *sql.DB, dir string, args ...string) error {
		if dir != database.MigrationsDir {
			return fmt.Errorf("unexpected dir %q", dir)
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "add_reviews_index", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	t.Run("memory engine", func(t *testing.T) {
		cli.db = nil
		checkErr(t, cliTest{wantErr: errNoSQLDB}, cli.run([]string{"admin", "migrate", "up"}))
	})
}

func Test_commandLine_createAdmin(t *testing.T) {
	cli := setup(t)
	testutil.CreateUser(t, usrRepo, "Amani", "amani@test.cd", user.RoleStudent)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"createadmin"}, wantErr: errHelp},
		{name: "no name", args: []string{"createadmin", "-email", "root@test.cd"}, wantErr: errHelp},
		{name: "no password", args: []string{"createadmin", "-email", "root@test.cd", "-name", "Root"}, wantErr: errNoPasswd},
		{
			name: "email taken", args: []string{"createadmin", "-email", "Amani@test.cd", "-name", "Root"},
			extra: extra{pwd: testutil.Password}, wantErr: user.ErrEmailExists,
		},
		{name: "created", args: []string{"createadmin", "-email", "root@test.cd", "-name", "Root"}, extra: extra{pwd: testutil.Password}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		mockPassword(tt)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if vErr, ok := errors.Cause(err).(*core.ValidationError); ok {
				err = vErr.Err
			}
			checkErr(t, tt, err)
		})
	}

	t.Run("weak password", func(t *testing.T) {
		mockPassword(cliTest{extra: extra{pwd: "12345678"}})
		err := cli.run([]string{"admin", "createadmin", "-email", "weak@test.cd", "-name", "Weak"})
		if _, ok := errors.Cause(err).(validator.ValidationErrors); !ok {
			t.Errorf("cli.run() error = %v, want validator.ValidationErrors", err)
		}
	})

	admin, err := usrRepo.GetUser(context.Background(), user.GetFilter{Email: "root@test.cd"})
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if !admin.IsAdmin() {
		t.Errorf("role = %q, want %q", admin.Role, user.RoleAdmin)
	}
	if err = admin.CheckPassword(testutil.Password); err != nil {
		t.Errorf("CheckPassword() error = %v", err)
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "Amani", "amani@test.cd", user.RoleStudent)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.cd"}, wantErr: errNoPasswd},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, extra: extra{pwd: "n3w-pwd!"}},
		{name: "reset, any case", args: []string{"resetpassword", "-email", "AMANI@test.cd"}, extra: extra{pwd: "n3w-pwd!!"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		mockPassword(tt)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			checkErr(t, tt, err)
			if err != nil {
				return
			}

			refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			if err != nil {
				t.Fatalf("GetUser() failed, %v", err)
			}
			if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
				t.Error("failed to update new password")
			}
			if err = refreshedUsr.CheckPassword(tt.extra.(extra).pwd); err != nil {
				t.Errorf("CheckPassword() error = %v", err)
			}
		})
	}
}
