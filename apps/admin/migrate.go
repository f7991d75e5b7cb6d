package main

import (
	"context"

	"github.com/pressly/goose/v3"

	"github.com/trezcool/tutorconnect/storage/database"
)

var gooseRunFunc = goose.RunContext // mockable

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQLDB
	}
	if err := database.InitGoose(); err != nil {
		return err
	}
	return gooseRunFunc(context.Background(), args[0], cli.db, database.MigrationsDir, args[1:]...)
}
