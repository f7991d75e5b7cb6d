package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tutorconnect/core"
	"github.com/trezcool/tutorconnect/core/user"
	logsvc "github.com/trezcool/tutorconnect/services/logger"
	"github.com/trezcool/tutorconnect/storage/database"
	inmemdb "github.com/trezcool/tutorconnect/storage/database/inmem"
	pgrepos "github.com/trezcool/tutorconnect/storage/database/postgres"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger(conf.Env)
	if err != nil {
		log.Fatalf("setting up zap: %v", err)
	}
	rl := logsvc.NewRollbarLogger(zl.Named("ADMIN"), conf)
	logger = rl

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	cli := commandLine{validate: validate}
	if conf.Database.Engine == database.EngineMemory {
		cli.usrSvc = user.NewService(inmemdb.NewUserRepository(inmemdb.Open()))
	} else {
		db, err := database.Open(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		defer func() { _ = db.Close() }()

		cli.db = db.DB
		cli.usrSvc = user.NewService(pgrepos.NewUserRepository(db, database.NewTransactor(db)))
	}

	err = cli.run(os.Args)
	rl.Sync()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
