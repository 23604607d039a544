package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	echoapi "github.com/trezcool/edunex/apps/api/echo"
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
	emailsvc "github.com/trezcool/edunex/services/email"
	leaderboardsvc "github.com/trezcool/edunex/services/leaderboard"
	logsvc "github.com/trezcool/edunex/services/logger"
	metricssvc "github.com/trezcool/edunex/services/metrics"
	realtimesvc "github.com/trezcool/edunex/services/realtime"
	schedulersvc "github.com/trezcool/edunex/services/scheduler"
	"github.com/trezcool/edunex/storage/database"
	boiledrepos "github.com/trezcool/edunex/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/edunex/storage/database/sqlx"
)

// TODO:
//   - CSRF protection for the cookie-less websocket handshake
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
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()
	tx := database.NewTransactor(db)

	// set up redis (optional: the leaderboard falls back on the DB)
	rdb := setUpRedis(conf, logger)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	validate, translator := newValidator()

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, conf, validate)
	crsSvc := course.NewService(sqlxrepos.NewCourseRepository(db), usrSvc)
	enrSvc := enrollment.NewService(sqlxrepos.NewEnrollmentRepository(db), tx, usrSvc, crsSvc)
	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db), usrSvc, mailSvc, logger)
	quizSvc := quiz.NewService(sqlxrepos.NewQuizRepository(db), tx, crsSvc, usrSvc, enrSvc, logger)
	asgSvc := assignment.NewService(sqlxrepos.NewAssignmentRepository(db), tx, crsSvc, enrSvc)
	attSvc := attendance.NewService(sqlxrepos.NewAttendanceRepository(db), usrSvc, crsSvc)
	matSvc := material.NewService(sqlxrepos.NewMaterialRepository(db), crsSvc, notifSvc)
	rptSvc := report.NewService(
		boiledrepos.NewStatsRepository(db),
		usrSvc,
		crsSvc,
		enrSvc,
		asgSvc,
		quizSvc,
		attSvc,
		mailSvc,
	)

	metrics := metricssvc.New()
	quizSvc.AddObservers(metrics, notification.NewQuizObserver(notifSvc))

	var board *leaderboardsvc.Leaderboard
	if rdb != nil {
		board = leaderboardsvc.New(rdb, conf.Redis.Prefix)
		quizSvc.AddObservers(board)
		quizSvc.SetRanker(board)
	}

	var checkOrigin func(r *http.Request) bool
	if conf.Debug {
		checkOrigin = func(*http.Request) bool { return true }
	}
	hub := realtimesvc.NewHub(logger, checkOrigin)
	defer hub.Close()
	notifSvc.SetPublisher(hub)

	scheduler := schedulersvc.New(conf.Scheduler, quizSvc, enrSvc, notifSvc, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	core.ParseEmailTemplates(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus scrape endpoint.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	http.DefaultServeMux.Handle("/metrics", metrics.Handler())

	debugSrv := &http.Server{Addr: conf.Server.DebugHost, Handler: http.DefaultServeMux}
	go func() {
		if err := debugSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Scheduler

	if conf.Scheduler.Enabled {
		if err = scheduler.Start(); err != nil {
			logger.Fatal(fmt.Sprintf("starting scheduler: %v", err), err)
		}
	}

	// =========================================================================
	// Start API Service

	deps := echoapi.ServerDeps{
		Conf:            conf,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		UserSvc:         usrSvc,
		CourseSvc:       crsSvc,
		EnrollmentSvc:   enrSvc,
		QuizSvc:         quizSvc,
		AssignmentSvc:   asgSvc,
		AttendanceSvc:   attSvc,
		MaterialSvc:     matSvc,
		NotificationSvc: notifSvc,
		ReportSvc:       rptSvc,
		Hub:             hub,
		Metrics:         metrics,
	}
	if board != nil {
		deps.Leaderboard = board
	}
	server := echoapi.NewServer(deps)

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

		// give outstanding requests and jobs a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		var g errgroup.Group
		g.Go(func() error {
			// asking listener to shutdown and shed load
			if err := server.Shutdown(ctx); err != nil {
				logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
				return server.Close()
			}
			return nil
		})
		g.Go(func() error {
			if !conf.Scheduler.Enabled {
				return nil
			}
			return scheduler.Stop(ctx)
		})
		g.Go(func() error { return debugSrv.Shutdown(ctx) })

		if err = g.Wait(); err != nil {
			logger.Error(fmt.Sprintf("could not shutdown cleanly: %v", err), err)
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(context.Background(), db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func setUpRedis(conf *core.Config, logger core.Logger) redis.UniversalClient {
	if conf.Redis.Addr == "" {
		return nil
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{conf.Redis.Addr},
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Warn(fmt.Sprintf("redis unavailable, leaderboards will be computed from the DB: %v", err))
		_ = rdb.Close()
		return nil
	}
	return rdb
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)
	return validate, translator
}
