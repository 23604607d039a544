package leaderboardsvc_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edunex/core/quiz"
	leaderboardsvc "github.com/trezcool/edunex/services/leaderboard"
	"github.com/trezcool/edunex/testutil"
)

func newLeaderboard(t *testing.T) (*leaderboardsvc.Leaderboard, *miniredis.Miniredis) {
	rs := miniredis.RunT(t)
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{rs.Addr()}})
	t.Cleanup(func() { _ = rdb.Close() })
	return leaderboardsvc.New(rdb, "test"), rs
}

func graded(studentID int64, pct float64) quiz.Attempt {
	return quiz.Attempt{StudentID: studentID, Percentage: pct, Status: quiz.StatusGraded}
}

func TestLeaderboard_Top(t *testing.T) {
	lb, rs := newLeaderboard(t)
	ctx := context.Background()
	q := quiz.Quiz{ID: 7}

	_, err := lb.Top(ctx, q.ID, 10)
	assert.Equal(t, quiz.ErrNoStandings, err)

	for _, a := range []quiz.Attempt{
		graded(10, 50),
		graded(9, 80),
		graded(10, 80),
		graded(9, 40), // worse than the recorded 80
		graded(3, 66.67),
		{StudentID: 4, Percentage: 100, Status: quiz.StatusSubmitted},
	} {
		require.NoError(t, lb.AttemptGraded(ctx, q, a))
	}
	assert.True(t, rs.Exists("test:quiz:7:leaderboard"))

	top, err := lb.Top(ctx, q.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []quiz.Standing{
		{Rank: 1, StudentID: 9, Percentage: 80},
		{Rank: 2, StudentID: 10, Percentage: 80},
		{Rank: 3, StudentID: 3, Percentage: 66.67},
	}, top)

	top, err = lb.Top(ctx, q.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, []quiz.Standing{{Rank: 1, StudentID: 9, Percentage: 80}}, top)

	require.NoError(t, lb.Reset(ctx, q.ID))
	_, err = lb.Top(ctx, q.ID, 10)
	assert.Equal(t, quiz.ErrNoStandings, err)
}

func TestLeaderboard_redisDown(t *testing.T) {
	lb, rs := newLeaderboard(t)
	rs.Close()

	_, err := lb.Top(context.Background(), 1, 10)
	assert.Error(t, err)
	assert.NotEqual(t, quiz.ErrNoStandings, err)
}

func TestLeaderboard_withQuizService(t *testing.T) {
	env := testutil.NewEnv(t)
	lb, _ := newLeaderboard(t)
	env.Quizzes.AddObservers(lb)
	env.Quizzes.SetRanker(lb)
	ctx := context.Background()

	crs := env.CreateCourse(t, "CS101", env.CreateInstructor(t, "prof"), 10)
	alice := env.CreateStudent(t, "alice", "")
	env.Enroll(t, alice, crs)
	q := env.CreateQuiz(t, crs, "Quiz", 2)
	question := env.AddQuestion(t, q, quiz.NewQuestion{Text: "1 + 1", Type: quiz.TypeTrueFalse, CorrectAnswer: "2"})

	for _, ans := range []string{"2", "3"} {
		a, err := env.Quizzes.StartAttempt(ctx, q.ID, alice.ID)
		require.NoError(t, err)
		_, err = env.Quizzes.SubmitAttempt(ctx, a.ID, quiz.SubmitAttempt{
			Answers: []quiz.AnswerInput{{QuestionID: question.ID, Answer: ans}},
		})
		require.NoError(t, err)
	}

	top, err := env.Quizzes.Leaderboard(ctx, q.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, []quiz.Standing{{Rank: 1, StudentID: alice.ID, Percentage: 100}}, top)
}
