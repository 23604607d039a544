package quiz_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edunex/core/notification"
	"github.com/trezcool/edunex/core/quiz"
	"github.com/trezcool/edunex/core/user"
	"github.com/trezcool/edunex/testutil"
)

type fixture struct {
	env     *testutil.Env
	student user.User
	quiz    quiz.Quiz
}

func setup(t *testing.T, maxAttempts int) fixture {
	env := testutil.NewEnv(t)
	instructor := env.CreateInstructor(t, "prof")
	crs := env.CreateCourse(t, "MATH101", instructor, 30)
	student := env.CreateStudent(t, "alice", "1MS21CS001")
	env.Enroll(t, student, crs)
	return fixture{env: env, student: student, quiz: env.CreateQuiz(t, crs, "Arithmetic", maxAttempts)}
}

func TestService_SubmitAttempt_scoring(t *testing.T) {
	tests := []struct {
		name      string
		answer    string
		wantMarks int
		wantPct   float64
	}{
		{name: "correct", answer: "8", wantMarks: 10, wantPct: 100},
		{name: "wrong", answer: "5", wantMarks: 0, wantPct: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, 1)
			ctx := context.Background()
			q := f.env.AddQuestion(t, f.quiz, quiz.NewQuestion{
				Text:          "3 + 5 = ?",
				Type:          quiz.TypeMCQ,
				OptionA:       "5",
				OptionB:       "8",
				CorrectAnswer: "8",
				Marks:         testutil.IntPtr(10),
			})

			a, err := f.env.Quizzes.StartAttempt(ctx, f.quiz.ID, f.student.ID)
			require.NoError(t, err)
			assert.Equal(t, quiz.StatusInProgress, a.Status)
			assert.Equal(t, 1, a.AttemptNumber)

			a, err = f.env.Quizzes.SubmitAttempt(ctx, a.ID, quiz.SubmitAttempt{
				Answers: []quiz.AnswerInput{{QuestionID: q.ID, Answer: tt.answer}},
			})
			require.NoError(t, err)
			assert.Equal(t, quiz.StatusGraded, a.Status)
			assert.Equal(t, tt.wantMarks, a.MarksObtained)
			assert.Equal(t, 10, a.TotalMarks)
			assert.Equal(t, tt.wantPct, a.Percentage)
			assert.NotNil(t, a.SubmittedAt)
		})
	}
}

func TestService_SubmitAttempt_mixedQuestions(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	mcq := f.env.AddQuestion(t, f.quiz, quiz.NewQuestion{
		Text: "Pick B", Type: quiz.TypeMCQ, OptionA: "A", OptionB: "B", CorrectAnswer: "B", Marks: testutil.IntPtr(2),
	})
	tf := f.env.AddQuestion(t, f.quiz, quiz.NewQuestion{Text: "Sky is blue", Type: quiz.TypeTrueFalse, CorrectAnswer: "true"})
	sa := f.env.AddQuestion(t, f.quiz, quiz.NewQuestion{
		Text: "Explain osmosis", Type: quiz.TypeShortAnswer, Marks: testutil.IntPtr(3),
	})
	assert.Equal(t, 1, tf.Marks)

	a, err := f.env.Quizzes.StartAttempt(ctx, f.quiz.ID, f.student.ID)
	require.NoError(t, err)
	a, err = f.env.Quizzes.SubmitAttempt(ctx, a.ID, quiz.SubmitAttempt{Answers: []quiz.AnswerInput{
		{QuestionID: mcq.ID, Answer: "b"},
		{QuestionID: tf.ID, Answer: "false"},
		{QuestionID: sa.ID, Answer: "water moving through a membrane"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, a.MarksObtained)
	assert.Equal(t, 6, a.TotalMarks)
	assert.InDelta(t, 100.0/3, a.Percentage, 1e-9)
	assert.NotEqual(t, 33.33, a.Percentage)
	assert.Equal(t, 1, a.PendingManualGrading)

	detail, err := f.env.Quizzes.GetAttempt(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, detail.Answers, 3)
	assert.Equal(t, 1, detail.PendingManualGrading)
	assert.Equal(t, mcq.ID, detail.Answers[0].QuestionID)
	assert.Equal(t, testutil.BoolPtr(true), detail.Answers[0].IsCorrect)
	assert.Equal(t, testutil.BoolPtr(false), detail.Answers[1].IsCorrect)
	assert.Nil(t, detail.Answers[2].IsCorrect)
	saAnswer := detail.Answers[2]

	t.Run("grade short answer", func(t *testing.T) {
		_, err := f.env.Quizzes.GradeShortAnswer(ctx, a.ID, quiz.GradeShortAnswer{AnswerID: saAnswer.ID, Marks: 4})
		assert.Equal(t, quiz.ErrInvalidMarks, err)
		_, err = f.env.Quizzes.GradeShortAnswer(ctx, a.ID, quiz.GradeShortAnswer{AnswerID: detail.Answers[0].ID, Marks: 1})
		assert.Equal(t, quiz.ErrNotShortAnswer, err)
		_, err = f.env.Quizzes.GradeShortAnswer(ctx, a.ID, quiz.GradeShortAnswer{AnswerID: 9999, Marks: 1})
		assert.Equal(t, quiz.ErrAnswerNotFound, err)

		graded, err := f.env.Quizzes.GradeShortAnswer(ctx, a.ID, quiz.GradeShortAnswer{AnswerID: saAnswer.ID, Marks: 3})
		require.NoError(t, err)
		assert.Equal(t, 5, graded.MarksObtained)
		assert.Equal(t, 6, graded.TotalMarks)
		assert.InDelta(t, 500.0/6, graded.Percentage, 1e-9)
		assert.Equal(t, 0, graded.PendingManualGrading)

		detail, err := f.env.Quizzes.GetAttempt(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, testutil.BoolPtr(true), detail.Answers[2].IsCorrect)
		assert.Equal(t, 3, detail.Answers[2].MarksAwarded)
	})

	t.Run("regrade is idempotent", func(t *testing.T) {
		first, err := f.env.Quizzes.GradeAttempt(ctx, a.ID)
		require.NoError(t, err)
		second, err := f.env.Quizzes.GradeAttempt(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 5, second.MarksObtained)
	})
}

func TestService_SubmitAttempt_noQuestions(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	a, err := f.env.Quizzes.StartAttempt(ctx, f.quiz.ID, f.student.ID)
	require.NoError(t, err)
	a, err = f.env.Quizzes.SubmitAttempt(ctx, a.ID, quiz.SubmitAttempt{})
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusGraded, a.Status)
	assert.Equal(t, 0, a.TotalMarks)
	assert.Equal(t, float64(0), a.Percentage)
}

func TestService_SubmitAttempt_invalid(t *testing.T) {
	f := setup(t, 3)
	ctx := context.Background()

	q := f.env.AddQuestion(t, f.quiz, quiz.NewQuestion{Text: "1 = 1", Type: quiz.TypeTrueFalse, CorrectAnswer: "true"})
	other := f.env.CreateQuiz(t, f.env.CreateCourse(t, "BIO101", f.env.CreateInstructor(t, "bio"), 10), "Cells", 1)
	foreign := f.env.AddQuestion(t, other, quiz.NewQuestion{Text: "Cells?", Type: quiz.TypeTrueFalse, CorrectAnswer: "true"})

	tests := []struct {
		name    string
		answers []quiz.AnswerInput
		wantErr error
	}{
		{name: "foreign question", answers: []quiz.AnswerInput{{QuestionID: foreign.ID, Answer: "true"}}, wantErr: quiz.ErrForeignQuestion},
		{
			name:    "duplicate answer",
			answers: []quiz.AnswerInput{{QuestionID: q.ID, Answer: "true"}, {QuestionID: q.ID, Answer: "false"}},
			wantErr: quiz.ErrDuplicateAnswer,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := f.env.Quizzes.StartAttempt(ctx, f.quiz.ID, f.student.ID)
			require.NoError(t, err)
			_, err = f.env.Quizzes.SubmitAttempt(ctx, a.ID, quiz.SubmitAttempt{Answers: tt.answers})
			assert.Equal(t, tt.wantErr, err)

			detail, err := f.env.Quizzes.GetAttempt(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, quiz.StatusInProgress, detail.Status)
			assert.Empty(t, detail.Answers)
		})
	}

	t.Run("unknown attempt", func(t *testing.T) {
		_, err := f.env.Quizzes.SubmitAttempt(ctx, 9999, quiz.SubmitAttempt{})
		assert.Equal(t, quiz.ErrAttemptNotFound, err)
	})

	t.Run("grade in progress", func(t *testing.T) {
		a, err := f.env.Quizzes.StartAttempt(ctx, f.quiz.ID, f.student.ID)
		require.NoError(t, err)
		_, err = f.env.Quizzes.GradeAttempt(ctx, a.ID)
		assert.Equal(t, quiz.ErrNotSubmitted, err)
	})
}

func TestService_StartAttempt(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("attempt limit", func(t *testing.T) {
		f := setup(t, 2)
		for n := 1; n <= 2; n++ {
			a, err := f.env.Quizzes.StartAttempt(ctx, f.quiz.ID, f.student.ID)
			require.NoError(t, err)
			assert.Equal(t, n, a.AttemptNumber)
		}
		_, err := f.env.Quizzes.StartAttempt(ctx, f.quiz.ID, f.student.ID)
		assert.Equal(t, quiz.ErrLimitExceeded, err)
	})

	tests := []struct {
		name    string
		update  quiz.UpdateQuiz
		student bool
		quizID  int64
		wantErr error
	}{
		{name: "unknown quiz", quizID: 9999, student: true, wantErr: quiz.ErrQuizNotFound},
		{name: "unknown student", wantErr: quiz.ErrStudentNotFound},
		{
			name:    "not yet open",
			update:  quiz.UpdateQuiz{StartTime: testutil.TimePtr(now.Add(time.Hour))},
			student: true,
			wantErr: quiz.ErrNotYetOpen,
		},
		{
			name:    "window closed",
			update:  quiz.UpdateQuiz{StartTime: testutil.TimePtr(now.Add(-2 * time.Hour)), EndTime: testutil.TimePtr(now.Add(-time.Hour))},
			student: true,
			wantErr: quiz.ErrWindowClosed,
		},
		{name: "inactive", update: quiz.UpdateQuiz{IsActive: testutil.BoolPtr(false)}, student: true, wantErr: quiz.ErrQuizInactive},
		{
			name:    "open window",
			update:  quiz.UpdateQuiz{StartTime: testutil.TimePtr(now.Add(-time.Hour)), EndTime: testutil.TimePtr(now.Add(time.Hour))},
			student: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, 1)
			q, err := f.env.Quizzes.UpdateQuiz(ctx, f.quiz, tt.update)
			require.NoError(t, err)

			quizID, studentID := q.ID, int64(9999)
			if tt.quizID != 0 {
				quizID = tt.quizID
			}
			if tt.student {
				studentID = f.student.ID
			}
			_, err = f.env.Quizzes.StartAttempt(ctx, quizID, studentID)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestService_StartAttempt_concurrent(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	const workers = 10
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		limitFails int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.env.Quizzes.StartAttempt(ctx, f.quiz.ID, f.student.ID)
			mu.Lock()
			defer mu.Unlock()
			switch errors.Cause(err) {
			case nil:
				successes++
			case quiz.ErrLimitExceeded:
				limitFails++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, limitFails)

	attempts, err := f.env.Quizzes.ListUserAttempts(ctx, f.quiz.ID, f.student.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}

func TestService_SubmitAttempt_concurrent(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()
	q := f.env.AddQuestion(t, f.quiz, quiz.NewQuestion{Text: "1 = 1", Type: quiz.TypeTrueFalse, CorrectAnswer: "true"})

	a, err := f.env.Quizzes.StartAttempt(ctx, f.quiz.ID, f.student.ID)
	require.NoError(t, err)

	const workers = 5
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.env.Quizzes.SubmitAttempt(ctx, a.ID, quiz.SubmitAttempt{
				Answers: []quiz.AnswerInput{{QuestionID: q.ID, Answer: "true"}},
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if err == quiz.ErrAlreadySubmitted {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, rejected)

	detail, err := f.env.Quizzes.GetAttempt(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Answers, 1)
	assert.Equal(t, 100.0, detail.Percentage)
}

func TestService_GetQuestions(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()
	second := f.env.AddQuestion(t, f.quiz, quiz.NewQuestion{Text: "2nd", Type: quiz.TypeTrueFalse, CorrectAnswer: "true", Order: 2})
	first := f.env.AddQuestion(t, f.quiz, quiz.NewQuestion{Text: "1st", Type: quiz.TypeTrueFalse, CorrectAnswer: "false", Order: 1})

	questions, err := f.env.Quizzes.GetQuestions(ctx, f.quiz.ID, false)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, first.ID, questions[0].ID)
	assert.Equal(t, second.ID, questions[1].ID)
	assert.Equal(t, "false", questions[0].CorrectAnswer)

	hidden, err := f.env.Quizzes.GetQuestions(ctx, f.quiz.ID, true)
	require.NoError(t, err)
	for _, q := range hidden {
		assert.Empty(t, q.CorrectAnswer)
	}

	_, err = f.env.Quizzes.GetQuestions(ctx, 9999, true)
	assert.Equal(t, quiz.ErrQuizNotFound, err)
}

func TestService_Leaderboard(t *testing.T) {
	f := setup(t, 2)
	ctx := context.Background()
	q := f.env.AddQuestion(t, f.quiz, quiz.NewQuestion{Text: "1 = 1", Type: quiz.TypeTrueFalse, CorrectAnswer: "true"})
	crs, err := f.env.Courses.GetByID(ctx, f.quiz.CourseID)
	require.NoError(t, err)

	bob := f.env.CreateStudent(t, "bob", "1MS21CS002")
	f.env.Enroll(t, bob, crs)

	take := func(studentID int64, answer string) {
		a, err := f.env.Quizzes.StartAttempt(ctx, f.quiz.ID, studentID)
		require.NoError(t, err)
		_, err = f.env.Quizzes.SubmitAttempt(ctx, a.ID, quiz.SubmitAttempt{
			Answers: []quiz.AnswerInput{{QuestionID: q.ID, Answer: answer}},
		})
		require.NoError(t, err)
	}
	take(f.student.ID, "false")
	take(bob.ID, "false")
	take(bob.ID, "true")

	standings, err := f.env.Quizzes.Leaderboard(ctx, f.quiz.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, []quiz.Standing{
		{Rank: 1, StudentID: bob.ID, Percentage: 100},
		{Rank: 2, StudentID: f.student.ID, Percentage: 0},
	}, standings)

	top, err := f.env.Quizzes.Leaderboard(ctx, f.quiz.ID, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)

	_, err = f.env.Quizzes.Leaderboard(ctx, 9999, 10)
	assert.Equal(t, quiz.ErrQuizNotFound, err)
}

func TestService_DueReminders(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()
	now := time.Now().UTC()
	crs, err := f.env.Courses.GetByID(ctx, f.quiz.CourseID)
	require.NoError(t, err)

	soon, err := f.env.Quizzes.UpdateQuiz(ctx, f.quiz, quiz.UpdateQuiz{StartTime: testutil.TimePtr(now.Add(30 * time.Minute))})
	require.NoError(t, err)
	later := f.env.CreateQuiz(t, crs, "Later", 1)
	_, err = f.env.Quizzes.UpdateQuiz(ctx, later, quiz.UpdateQuiz{StartTime: testutil.TimePtr(now.Add(48 * time.Hour))})
	require.NoError(t, err)
	f.env.CreateQuiz(t, crs, "No window", 1)

	due, err := f.env.Quizzes.DueReminders(ctx, time.Hour)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, soon.ID, due[0].ID)

	// an instructor edits the quiz between the lookup and the reminder
	_, err = f.env.Quizzes.UpdateQuiz(ctx, soon, quiz.UpdateQuiz{Title: "Renamed"})
	require.NoError(t, err)

	reminded, err := f.env.Quizzes.MarkReminded(ctx, due[0])
	require.NoError(t, err)
	assert.NotNil(t, reminded.RemindedAt)
	assert.Equal(t, "Renamed", reminded.Title)

	stored, err := f.env.Quizzes.GetQuiz(ctx, soon.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Title)
	assert.NotNil(t, stored.RemindedAt)

	_, err = f.env.Quizzes.MarkReminded(ctx, quiz.Quiz{ID: 9999})
	assert.Equal(t, quiz.ErrQuizNotFound, err)

	due, err = f.env.Quizzes.DueReminders(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestService_notifiesOnGrade(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	a, err := f.env.Quizzes.StartAttempt(ctx, f.quiz.ID, f.student.ID)
	require.NoError(t, err)
	_, err = f.env.Quizzes.SubmitAttempt(ctx, a.ID, quiz.SubmitAttempt{})
	require.NoError(t, err)

	notifs, err := f.env.Notifications.List(ctx, f.student.ID, true)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, notification.TypeGrade, notifs[0].Type)
	assert.Contains(t, notifs[0].Title, f.quiz.Title)

	activities, err := f.env.Notifications.ActivitiesByUser(ctx, f.student.ID)
	require.NoError(t, err)
	types := make([]string, 0, len(activities))
	for _, act := range activities {
		types = append(types, act.Type)
	}
	assert.ElementsMatch(t, []string{notification.ActivityQuizStarted, notification.ActivityQuizGraded}, types)

	msgs := f.env.Mail.Messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, f.student.Email, msgs[len(msgs)-1].To[0].Address)
}

func TestService_ListAvailableQuizzesForUser(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()
	other := f.env.CreateCourse(t, "CHEM101", f.env.CreateInstructor(t, "chem"), 10)
	f.env.CreateQuiz(t, other, "Elsewhere", 1)

	quizzes, err := f.env.Quizzes.ListAvailableQuizzesForUser(ctx, f.student.ID)
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	assert.Equal(t, f.quiz.ID, quizzes[0].ID)
}
