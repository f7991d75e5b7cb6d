package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // /debug/pprof
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	echoapi "github.com/trezcool/tutorconnect/apps/api/echo"
	"github.com/trezcool/tutorconnect/core"
	"github.com/trezcool/tutorconnect/core/application"
	"github.com/trezcool/tutorconnect/core/availability"
	"github.com/trezcool/tutorconnect/core/report"
	"github.com/trezcool/tutorconnect/core/review"
	"github.com/trezcool/tutorconnect/core/session"
	"github.com/trezcool/tutorconnect/core/subject"
	"github.com/trezcool/tutorconnect/core/user"
	emailsvc "github.com/trezcool/tutorconnect/services/email"
	logsvc "github.com/trezcool/tutorconnect/services/logger"
	"github.com/trezcool/tutorconnect/services/metrics"
	"github.com/trezcool/tutorconnect/services/scheduler"
	"github.com/trezcool/tutorconnect/storage/database"
	inmemdb "github.com/trezcool/tutorconnect/storage/database/inmem"
	pgrepos "github.com/trezcool/tutorconnect/storage/database/postgres"
)

type repositories struct {
	users        user.Repository
	availability availability.Repository
	sessions     session.Repository
	reviews      review.Repository
	applications application.Repository
	reports      report.Repository
	subjects     subject.Repository
	txr          core.Transactor
	close        func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger(conf.Env)
	if err != nil {
		log.Fatalf("setting up zap: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("API"), conf)
	dbLogger := logsvc.NewRollbarLogger(zl.Named("DB"), conf)
	defer logger.Sync()

	repos, err := setUpRepositories(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	usrSvc := user.NewService(repos.users)
	availSvc := availability.NewService(repos.availability, repos.txr, conf.Location())
	sessSvc := session.NewService(session.Deps{
		Repo:         repos.sessions,
		Availability: availSvc,
		Subjects:     repos.subjects,
		MailSvc:      mailSvc,
		Logger:       logger,
		Metrics:      m,
		Conf:         conf,
	})
	reviewSvc := review.NewService(repos.reviews, sessSvc)
	appSvc := application.NewService(repos.applications, usrSvc, repos.txr, mailSvc)
	reportSvc := report.NewService(repos.reports, usrSvc, sessSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build), "env", conf.Env)
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	availability.InitValidators(validate, translator)
	application.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - prometheus

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	http.Handle("/metrics", promhttp.Handler())

	if conf.Server.DebugAddress != "" {
		go func() {
			if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
				logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()
	}

	// =========================================================================
	// Start Reminder Scheduler

	rdb := newRedisClient(conf, logger)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	ctx, cancelScheduler := context.WithCancel(context.Background())
	sched := scheduler.New(sessSvc, rdb, m, logger, conf)
	sched.Start(ctx)
	defer func() {
		cancelScheduler()
		sched.Stop()
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:            conf,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		UserSvc:         usrSvc,
		AvailabilitySvc: availSvc,
		SessionSvc:      sessSvc,
		ReviewSvc:       reviewSvc,
		ApplicationSvc:  appSvc,
		ReportSvc:       reportSvc,
		Subjects:        repos.subjects,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
	}

	// give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	// asking listener to shutdown and shed load
	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

		if err = server.Close(); err != nil {
			logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			os.Exit(1)
		}
	}
}

func setUpRepositories(conf *core.Config) (repositories, error) {
	if conf.Database.Engine == database.EngineMemory {
		db := inmemdb.Open()
		return repositories{
			users:        inmemdb.NewUserRepository(db),
			availability: inmemdb.NewAvailabilityRepository(db),
			sessions:     inmemdb.NewSessionRepository(db),
			reviews:      inmemdb.NewReviewRepository(db),
			applications: inmemdb.NewApplicationRepository(db),
			reports:      inmemdb.NewReportRepository(db),
			subjects:     inmemdb.NewSubjectRepository(db),
			txr:          db,
			close:        func() error { return nil },
		}, nil
	}

	db, err := setUpDB(conf)
	if err != nil {
		return repositories{}, err
	}
	txr := database.NewTransactor(db)
	return repositories{
		users:        pgrepos.NewUserRepository(db, txr),
		availability: pgrepos.NewAvailabilityRepository(db, txr),
		sessions:     pgrepos.NewSessionRepository(db, txr),
		reviews:      pgrepos.NewReviewRepository(db, txr),
		applications: pgrepos.NewApplicationRepository(db, txr),
		reports:      pgrepos.NewReportRepository(db, txr),
		subjects:     pgrepos.NewSubjectRepository(db, txr),
		txr:          txr,
		close:        db.Close,
	}, nil
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(context.Background(), db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// newRedisClient returns nil when redis is not configured or unreachable; reminders then run unlocked.
func newRedisClient(conf *core.Config, logger core.Logger) *redis.Client {
	if conf.Redis.Address == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: conf.Redis.Address, Password: conf.Redis.Password})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis unreachable, reminder sweeps will not be locked", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
