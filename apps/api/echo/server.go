package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/assignment"
	"github.com/trezcool/edunex/core/attendance"
	"github.com/trezcool/edunex/core/course"
	"github.com/trezcool/edunex/core/enrollment"
	"github.com/trezcool/edunex/core/material"
	"github.com/trezcool/edunex/core/notification"
	"github.com/trezcool/edunex/core/quiz"
	"github.com/trezcool/edunex/core/report"
	"github.com/trezcool/edunex/core/user"
)

type (
	// ServerDeps holds what the API needs. Hub, Metrics and Leaderboard are optional.
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool

		UserSvc         *user.Service
		CourseSvc       *course.Service
		EnrollmentSvc   *enrollment.Service
		QuizSvc         *quiz.Service
		AssignmentSvc   *assignment.Service
		AttendanceSvc   *attendance.Service
		MaterialSvc     *material.Service
		NotificationSvc *notification.Service
		ReportSvc       *report.Service

		Hub         WebsocketHub
		Metrics     RequestMetrics
		Leaderboard LeaderboardResetter
	}

	// WebsocketHub keeps the notification sockets of connected users.
	WebsocketHub interface {
		ServeWS(w http.ResponseWriter, r *http.Request, userID int64) error
	}

	RequestMetrics interface {
		Middleware() echo.MiddlewareFunc
	}

	LeaderboardResetter interface {
		Reset(ctx context.Context, quizID int64) error
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf, deps.UserSvc),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.deps.Metrics != nil {
		s.app.Use(s.deps.Metrics.Middleware())
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := s.auth.middleware("")

	registerUserAPI(v1, jwt, s)
	registerCourseAPI(v1, jwt, s)
	registerEnrollmentAPI(v1, jwt, s)
	registerAssignmentAPI(v1, jwt, s)
	registerAttendanceAPI(v1, jwt, s)
	registerMaterialAPI(v1, jwt, s)
	registerQuizAPI(v1, jwt, s)
	registerNotificationAPI(v1, jwt, s)
	registerReportAPI(v1, jwt, s)
}

// Start listens on the configured host. Listening errors are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown asks the app to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
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
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
