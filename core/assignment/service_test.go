package assignment_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edunex/core/assignment"
	"github.com/trezcool/edunex/testutil"
)

func TestService_Submit(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	prof := env.CreateInstructor(t, "prof")
	crs := env.CreateCourse(t, "CS101", prof, 10)
	alice := env.CreateStudent(t, "alice", "")
	bob := env.CreateStudent(t, "bob", "")
	env.Enroll(t, alice, crs)

	now := time.Now().UTC()
	open, err := env.Assignments.Create(ctx, assignment.NewAssignment{Title: "Essay", DueDate: now.Add(24 * time.Hour)}, crs.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, open.MaxMarks)
	overdue, err := env.Assignments.Create(ctx, assignment.NewAssignment{Title: "Lab", DueDate: now.Add(-time.Hour)}, crs.ID)
	require.NoError(t, err)

	sub, err := env.Assignments.Submit(ctx, open.ID, alice.ID, assignment.NewSubmission{Content: "draft"})
	require.NoError(t, err)
	assert.Equal(t, assignment.StatusSubmitted, sub.Status)

	resub, err := env.Assignments.Submit(ctx, open.ID, alice.ID, assignment.NewSubmission{Content: "final"})
	require.NoError(t, err)
	assert.Equal(t, sub.ID, resub.ID)
	assert.Equal(t, "final", resub.Content)

	late, err := env.Assignments.Submit(ctx, overdue.ID, alice.ID, assignment.NewSubmission{Content: "sorry"})
	require.NoError(t, err)
	assert.Equal(t, assignment.StatusLate, late.Status)

	_, err = env.Assignments.Submit(ctx, open.ID, bob.ID, assignment.NewSubmission{Content: "let me in"})
	assert.Equal(t, assignment.ErrNotEnrolled, err)
	_, err = env.Assignments.Submit(ctx, 9999, alice.ID, assignment.NewSubmission{Content: "?"})
	assert.Equal(t, assignment.ErrNotFound, err)

	pending, err := env.Assignments.ListPending(ctx, crs.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	t.Run("grade", func(t *testing.T) {
		_, err := env.Assignments.Grade(ctx, sub.ID, assignment.GradeSubmission{Marks: 101})
		assert.Equal(t, assignment.ErrInvalidMarks, err)
		_, err = env.Assignments.Grade(ctx, 9999, assignment.GradeSubmission{Marks: 1})
		assert.Equal(t, assignment.ErrSubmissionNotFound, err)

		graded, err := env.Assignments.Grade(ctx, sub.ID, assignment.GradeSubmission{Marks: 88, Feedback: " Good work "})
		require.NoError(t, err)
		assert.Equal(t, assignment.StatusGraded, graded.Status)
		require.NotNil(t, graded.MarksObtained)
		assert.Equal(t, 88, *graded.MarksObtained)
		assert.Equal(t, "Good work", graded.Feedback)
		assert.NotNil(t, graded.GradedAt)

		_, err = env.Assignments.Submit(ctx, open.ID, alice.ID, assignment.NewSubmission{Content: "one more"})
		assert.Equal(t, assignment.ErrAlreadyGraded, err)

		pending, err := env.Assignments.ListPending(ctx, crs.ID)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})
}

func TestService_ListForUser(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	prof := env.CreateInstructor(t, "prof")
	other := env.CreateInstructor(t, "other")
	admin := env.CreateAdmin(t, "admin")
	alice := env.CreateStudent(t, "alice", "")
	cs := env.CreateCourse(t, "CS101", prof, 10)
	ma := env.CreateCourse(t, "MA101", other, 10)
	env.Enroll(t, alice, cs)

	due := time.Now().Add(time.Hour)
	_, err := env.Assignments.Create(ctx, assignment.NewAssignment{Title: "CS work", DueDate: due}, cs.ID)
	require.NoError(t, err)
	_, err = env.Assignments.Create(ctx, assignment.NewAssignment{Title: "Math work", DueDate: due}, ma.ID)
	require.NoError(t, err)

	tests := []struct {
		name string
		usr  int64
		want int
	}{
		{name: "admin", usr: admin.ID, want: 2},
		{name: "instructor", usr: other.ID, want: 1},
		{name: "student", usr: alice.ID, want: 1},
		{name: "unenrolled", usr: env.CreateStudent(t, "bob", "").ID, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := env.Users.GetByID(ctx, tt.usr)
			require.NoError(t, err)
			list, err := env.Assignments.ListForUser(ctx, usr)
			require.NoError(t, err)
			assert.Len(t, list, tt.want)
		})
	}
}
