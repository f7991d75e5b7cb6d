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

	"github.com/trezcool/tutorconnect/core"
	"github.com/trezcool/tutorconnect/core/application"
	"github.com/trezcool/tutorconnect/core/availability"
	"github.com/trezcool/tutorconnect/core/report"
	"github.com/trezcool/tutorconnect/core/review"
	"github.com/trezcool/tutorconnect/core/session"
	"github.com/trezcool/tutorconnect/core/subject"
	"github.com/trezcool/tutorconnect/core/user"
)

type (
	ServerDeps struct {
		Conf            *core.Config
		Logger          core.Logger
		Validate        *validator.Validate
		Translator      ut.Translator
		UserSvc         *user.Service
		AvailabilitySvc *availability.Service
		SessionSvc      *session.Service
		ReviewSvc       *review.Service
		ApplicationSvc  *application.Service
		ReportSvc       *report.Service
		Subjects        subject.Repository
		DisableReqLogs  bool
	}

	Server struct {
		ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		ServerDeps: deps,
		app:        echo.New(),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = s.Conf.TestMode
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.Conf.Debug || s.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if len(s.Conf.Server.CORSOrigins) > 0 {
		s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: s.Conf.Server.CORSOrigins}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.SignalShutdown)
	s.app.Debug = s.Conf.Debug

	s.app.GET("/", s.home)
	s.app.Static(s.Conf.Uploads.URLPrefix, s.Conf.Uploads.Dir)

	api := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(newJWTConfig(s.Conf))
	uploads := newUploadStore(s.Conf)

	registerAuthAPI(api, jwt, s.UserSvc, s.Validate, s.Conf)
	registerTutorAPI(api, jwt, tutorApi{
		usrSvc:    s.UserSvc,
		availSvc:  s.AvailabilitySvc,
		sessSvc:   s.SessionSvc,
		reviewSvc: s.ReviewSvc,
		appSvc:    s.ApplicationSvc,
		uploads:   uploads,
		validate:  s.Validate,
	})
	registerSessionAPI(api, jwt, sessionApi{
		usrSvc:   s.UserSvc,
		svc:      s.SessionSvc,
		validate: s.Validate,
	})
	registerStudentAPI(api, jwt, studentApi{
		usrSvc:   s.UserSvc,
		sessSvc:  s.SessionSvc,
		validate: s.Validate,
	})
	registerReviewAPI(api, jwt, reviewApi{
		usrSvc:   s.UserSvc,
		svc:      s.ReviewSvc,
		validate: s.Validate,
	})
	registerSubjectAPI(api, s.Subjects)
	registerAdminAPI(api, jwt, adminApi{
		usrSvc:    s.UserSvc,
		appSvc:    s.ApplicationSvc,
		sessSvc:   s.SessionSvc,
		reportSvc: s.ReportSvc,
		uploads:   uploads,
		validate:  s.Validate,
	})
}

// Start blocks until the server stops; a failure to listen is sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown asks the app to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.Conf.AppName+" API!")
}
