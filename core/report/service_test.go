package report_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edunex/core/assignment"
	"github.com/trezcool/edunex/core/attendance"
	"github.com/trezcool/edunex/core/course"
	"github.com/trezcool/edunex/core/enrollment"
	"github.com/trezcool/edunex/core/quiz"
	"github.com/trezcool/edunex/core/report"
	"github.com/trezcool/edunex/core/user"
	"github.com/trezcool/edunex/testutil"
)

type fixture struct {
	env        *testutil.Env
	prof       user.User
	alice, bob user.User
	crs        course.Course
}

// setup builds a course where alice attended twice out of two sessions and scored 100% on a quiz,
// while bob missed one session and has not taken the quiz.
func setup(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	prof := env.CreateInstructor(t, "prof")
	crs := env.CreateCourse(t, "CS101", prof, 10)
	alice := env.CreateStudent(t, "alice", "1MS21CS001")
	bob := env.CreateStudent(t, "bob", "1MS21CS002")
	aliceEnr := env.Enroll(t, alice, crs)
	env.Enroll(t, bob, crs)

	_, err := env.Enrollments.SetFinalGrade(ctx, aliceEnr.ID, 91)
	require.NoError(t, err)

	for _, m := range []attendance.Mark{
		{StudentID: alice.ID, CourseID: crs.ID, Date: "2024-03-01", Status: attendance.StatusPresent},
		{StudentID: alice.ID, CourseID: crs.ID, Date: "2024-03-02", Status: attendance.StatusPresent},
		{StudentID: bob.ID, CourseID: crs.ID, Date: "2024-03-01", Status: attendance.StatusPresent},
		{StudentID: bob.ID, CourseID: crs.ID, Date: "2024-03-02", Status: attendance.StatusAbsent},
	} {
		_, err := env.Attendance.Mark(ctx, m, prof)
		require.NoError(t, err)
	}

	q := env.CreateQuiz(t, crs, "Quiz 1", 1)
	question := env.AddQuestion(t, q, quiz.NewQuestion{Text: "2 + 2", Type: quiz.TypeMCQ, OptionA: "3", OptionB: "4", CorrectAnswer: "4"})
	a, err := env.Quizzes.StartAttempt(ctx, q.ID, alice.ID)
	require.NoError(t, err)
	_, err = env.Quizzes.SubmitAttempt(ctx, a.ID, quiz.SubmitAttempt{
		Answers: []quiz.AnswerInput{{QuestionID: question.ID, Answer: "4"}},
	})
	require.NoError(t, err)

	as, err := env.Assignments.Create(ctx, assignment.NewAssignment{Title: "Essay", DueDate: a.StartedAt.AddDate(0, 0, 1)}, crs.ID)
	require.NoError(t, err)
	_, err = env.Assignments.Submit(ctx, as.ID, alice.ID, assignment.NewSubmission{Content: "essay"})
	require.NoError(t, err)

	return fixture{env: env, prof: prof, alice: alice, bob: bob, crs: crs}
}

func TestService_StudentGrades(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	rep, err := f.env.Reports.StudentGrades(ctx, f.alice.ID, f.crs.ID)
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, rep.Student.ID)
	assert.Equal(t, f.prof.ID, rep.Instructor.ID)
	assert.Equal(t, "CS101", rep.Course.Code)
	assert.Equal(t, enrollment.StatusActive, rep.Enrollment.Status)
	assert.Len(t, rep.Submissions, 1)
	require.Len(t, rep.QuizAttempts, 1)
	assert.Equal(t, 100.0, rep.QuizAttempts[0].Percentage)
	assert.Len(t, rep.Attendance, 2)
	assert.Equal(t, 100.0, rep.AttendanceRate)

	_, err = f.env.Reports.StudentGrades(ctx, f.alice.ID, 9999)
	assert.Equal(t, course.ErrNotFound, err)
	_, err = f.env.Reports.StudentGrades(ctx, f.prof.ID, f.crs.ID)
	assert.Equal(t, enrollment.ErrNotFound, err)
}

func TestService_CourseAttendance(t *testing.T) {
	f := setup(t)

	rep, err := f.env.Reports.CourseAttendance(context.Background(), f.crs.ID)
	require.NoError(t, err)
	require.Len(t, rep.Rows, 2)

	rows := make(map[int64]report.AttendanceRow)
	for _, r := range rep.Rows {
		rows[r.Student.ID] = r
	}
	assert.Equal(t, report.AttendanceRow{Student: rows[f.alice.ID].Student, Present: 2, Total: 2, Rate: 100}, rows[f.alice.ID])
	assert.Equal(t, report.AttendanceRow{Student: rows[f.bob.ID].Student, Present: 1, Absent: 1, Total: 2, Rate: 50}, rows[f.bob.ID])

	var buf bytes.Buffer
	require.NoError(t, report.WriteAttendanceCSV(&buf, rep))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student,USN,Present,Absent,Late,Excused,Total,Rate", lines[0])
	assert.Contains(t, buf.String(), "Student bob,1MS21CS002,1,1,0,0,2,50.00")
}

func TestService_CoursePerformance(t *testing.T) {
	f := setup(t)

	rep, err := f.env.Reports.CoursePerformance(context.Background(), f.crs.ID)
	require.NoError(t, err)
	require.Len(t, rep.Rows, 2)

	rows := make(map[int64]report.PerformanceRow)
	for _, r := range rep.Rows {
		rows[r.Student.ID] = r
	}
	alice, bob := rows[f.alice.ID], rows[f.bob.ID]
	assert.Equal(t, 1, alice.QuizAttempts)
	assert.Equal(t, 100.0, alice.AvgQuizPercentage)
	assert.Equal(t, 100.0, alice.AttendanceRate)
	require.NotNil(t, alice.FinalGrade)
	assert.Equal(t, 91.0, *alice.FinalGrade)
	assert.Equal(t, 0, bob.QuizAttempts)
	assert.Equal(t, 0.0, bob.AvgQuizPercentage)
	assert.Nil(t, bob.FinalGrade)

	var buf bytes.Buffer
	require.NoError(t, report.WritePerformanceCSV(&buf, rep))
	assert.Contains(t, buf.String(), "Student alice,1MS21CS001,ACTIVE,0.00,91.00,1,100.00,100.00")
	assert.Contains(t, buf.String(), "Student bob,1MS21CS002,ACTIVE,0.00,N/A,0,0.00,50.00")
}

func TestService_MailCSV(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.env.Mail.Reset()

	require.NoError(t, f.env.Reports.MailCSV(ctx, report.KindPerformance, f.crs.ID, f.prof))

	sent := f.env.Mail.Messages()
	require.Len(t, sent, 1)
	msg := sent[0]
	require.Len(t, msg.To, 1)
	assert.Equal(t, f.prof.Email, msg.To[0].Address)
	assert.Equal(t, "CS101 performance report", msg.Subject)
	assert.Contains(t, msg.TextContent, "performance_CS101.csv")

	require.Len(t, msg.Attachments, 1)
	at := msg.Attachments[0]
	assert.Equal(t, "performance_CS101.csv", at.Filename)
	assert.Equal(t, "text/csv", at.ContentType)
	content, err := base64.StdEncoding.DecodeString(at.Content.String())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "Student,USN,Status,Progress,Final Grade,Quiz Attempts,Avg Quiz %,Attendance %\n"))
	assert.Contains(t, string(content), "Student alice,1MS21CS001,ACTIVE")

	t.Run("unknown kind", func(t *testing.T) {
		f.env.Mail.Reset()
		err := f.env.Reports.MailCSV(ctx, report.Kind("grades"), f.crs.ID, f.prof)
		assert.Equal(t, report.ErrUnknownKind, err)
		assert.Empty(t, f.env.Mail.Messages())
	})

	t.Run("no mailbox", func(t *testing.T) {
		f.env.Mail.Reset()
		to := f.prof
		to.Email = ""
		err := f.env.Reports.MailCSV(ctx, report.KindAttendance, f.crs.ID, to)
		assert.Equal(t, report.ErrNoMailbox, err)
		assert.Empty(t, f.env.Mail.Messages())
	})

	t.Run("unknown course", func(t *testing.T) {
		f.env.Mail.Reset()
		err := f.env.Reports.MailCSV(ctx, report.KindAttendance, 9999, f.prof)
		assert.Equal(t, course.ErrNotFound, errors.Cause(err))
		assert.Empty(t, f.env.Mail.Messages())
	})
}

func TestParseKind(t *testing.T) {
	k, ok := report.ParseKind("attendance")
	assert.True(t, ok)
	assert.Equal(t, report.KindAttendance, k)

	_, ok = report.ParseKind("Attendance")
	assert.False(t, ok)
}

func TestService_Dashboard(t *testing.T) {
	f := setup(t)

	stats, err := f.env.Reports.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.DashboardStats{
		TotalUsers:         3,
		Students:           2,
		Instructors:        1,
		ActiveUsers:        3,
		TotalCourses:       1,
		ActiveCourses:      1,
		TotalEnrollments:   2,
		TotalAssignments:   1,
		PendingSubmissions: 1,
		TotalQuizzes:       1,
		GradedAttempts:     1,
		AvgQuizPercentage:  100,
	}, stats)
}
