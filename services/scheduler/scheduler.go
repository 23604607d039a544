// Package schedulersvc runs the periodic jobs of the API.
package schedulersvc

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/enrollment"
	"github.com/trezcool/edunex/core/notification"
	"github.com/trezcool/edunex/core/quiz"
)

const jobTimeout = 5 * time.Minute

type (
	QuizReminders interface {
		DueReminders(ctx context.Context, window time.Duration) ([]quiz.Quiz, error)
		MarkReminded(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error)
	}

	EnrollmentLister interface {
		ListByCourse(ctx context.Context, courseID int64) ([]enrollment.Enrollment, error)
	}

	Notifier interface {
		Notify(ctx context.Context, nn notification.NewNotification) (notification.Notification, error)
	}

	Scheduler struct {
		conf        core.SchedulerConfig
		cron        *cron.Cron
		quizzes     QuizReminders
		enrollments EnrollmentLister
		notifier    Notifier
		logger      core.Logger
	}
)

func New(
	conf core.SchedulerConfig,
	quizzes QuizReminders,
	enrollments EnrollmentLister,
	notifier Notifier,
	logger core.Logger,
) *Scheduler {
	cl := cronLogger{logger}
	return &Scheduler{
		conf: conf,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		quizzes:     quizzes,
		enrollments: enrollments,
		notifier:    notifier,
		logger:      logger,
	}
}

// Start schedules the jobs and runs them in the background.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.conf.QuizReminderSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if n, err := s.SendQuizReminders(ctx); err != nil {
			s.logger.Error("sending quiz reminders", err)
		} else if n > 0 {
			s.logger.Info(fmt.Sprintf("sent reminders for %d quiz(zes)", n))
		}
	})
	if err != nil {
		return errors.Wrapf(err, "scheduling quiz reminders %q", s.conf.QuizReminderSpec)
	}
	s.cron.Start()
	return nil
}

// Stop stops scheduling and waits for the running jobs, or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendQuizReminders tells the students of every quiz starting within the reminder window
// that it is about to open. Each quiz is reminded once. It returns the number of quizzes reminded.
func (s *Scheduler) SendQuizReminders(ctx context.Context) (int, error) {
	quizzes, err := s.quizzes.DueReminders(ctx, s.conf.QuizReminderWindow)
	if err != nil {
		return 0, err
	}

	reminded := 0
	for _, q := range quizzes {
		enrs, err := s.enrollments.ListByCourse(ctx, q.CourseID)
		if err != nil {
			return reminded, errors.Wrapf(err, "listing students of quiz %d", q.ID)
		}
		for _, enr := range enrs {
			if enr.Status != enrollment.StatusActive {
				continue
			}
			_, err = s.notifier.Notify(ctx, notification.NewNotification{
				UserID:  enr.StudentID,
				Title:   "Upcoming quiz: " + q.Title,
				Message: fmt.Sprintf("%q opens at %s UTC.", q.Title, q.StartTime.Format("2006-01-02 15:04")),
				Type:    notification.TypeQuiz,
				LinkURL: fmt.Sprintf("/quizzes/%d", q.ID),
				Email:   true,
			})
			if err != nil {
				s.logger.Error(fmt.Sprintf("reminding student %d of quiz %d", enr.StudentID, q.ID), err)
			}
		}
		if _, err = s.quizzes.MarkReminded(ctx, q); err != nil {
			return reminded, errors.Wrapf(err, "marking quiz %d reminded", q.ID)
		}
		reminded++
	}
	return reminded, nil
}

// cronLogger reports cron events to a core.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, kvData(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, err, kvData(keysAndValues))
}

func kvData(keysAndValues []interface{}) map[string]interface{} {
	data := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		data[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return data
}
