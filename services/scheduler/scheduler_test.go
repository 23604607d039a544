package schedulersvc_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/notification"
	"github.com/trezcool/edunex/core/quiz"
	schedulersvc "github.com/trezcool/edunex/services/scheduler"
	"github.com/trezcool/edunex/testutil"
)

func TestScheduler_SendQuizReminders(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	crs := env.CreateCourse(t, "CS101", env.CreateInstructor(t, "prof"), 10)
	alice := env.CreateStudent(t, "alice", "")
	bob := env.CreateStudent(t, "bob", "")
	env.Enroll(t, alice, crs)
	bobEnr := env.Enroll(t, bob, crs)
	_, err := env.Enrollments.Drop(ctx, bobEnr.ID)
	require.NoError(t, err)

	now := time.Now()
	soon, err := env.Quizzes.CreateQuiz(ctx, quiz.NewQuiz{Title: "Soon", StartTime: testutil.TimePtr(now.Add(30 * time.Minute))}, crs.ID)
	require.NoError(t, err)
	_, err = env.Quizzes.CreateQuiz(ctx, quiz.NewQuiz{Title: "Later", StartTime: testutil.TimePtr(now.Add(3 * time.Hour))}, crs.ID)
	require.NoError(t, err)
	_, err = env.Quizzes.CreateQuiz(ctx, quiz.NewQuiz{Title: "Open", StartTime: testutil.TimePtr(now.Add(-time.Minute))}, crs.ID)
	require.NoError(t, err)

	sched := schedulersvc.New(
		core.SchedulerConfig{QuizReminderSpec: "@every 1h", QuizReminderWindow: time.Hour},
		env.Quizzes, env.Enrollments, env.Notifications, env.Logger,
	)

	n, err := sched.SendQuizReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	notifs, err := env.Notifications.List(ctx, alice.ID, true)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, notification.TypeQuiz, notifs[0].Type)
	assert.Equal(t, "Upcoming quiz: Soon", notifs[0].Title)

	dropped, err := env.Notifications.List(ctx, bob.ID, true)
	require.NoError(t, err)
	assert.Empty(t, dropped)

	msgs := env.Mail.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Upcoming quiz: Soon", msgs[0].Subject)

	reminded, err := env.Quizzes.GetQuiz(ctx, soon.ID)
	require.NoError(t, err)
	assert.NotNil(t, reminded.RemindedAt)

	n, err = sched.SendQuizReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "quizzes are reminded once")
}

func TestScheduler_StartStop(t *testing.T) {
	env := testutil.NewEnv(t)

	bad := schedulersvc.New(core.SchedulerConfig{QuizReminderSpec: "every now and then"}, env.Quizzes, env.Enrollments, env.Notifications, env.Logger)
	assert.Error(t, bad.Start())

	sched := schedulersvc.New(env.Conf.Scheduler, env.Quizzes, env.Enrollments, env.Notifications, env.Logger)
	require.NoError(t, sched.Start())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, sched.Stop(ctx))
}
