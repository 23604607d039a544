package enrollment_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edunex/core/course"
	"github.com/trezcool/edunex/core/enrollment"
	"github.com/trezcool/edunex/testutil"
)

func TestService_Enroll(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	prof := env.CreateInstructor(t, "prof")
	crs := env.CreateCourse(t, "CS101", prof, 2)
	alice := env.CreateStudent(t, "alice", "")
	bob := env.CreateStudent(t, "bob", "")
	carl := env.CreateStudent(t, "carl", "")

	enr, err := env.Enrollments.Enroll(ctx, alice.ID, crs.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusActive, enr.Status)
	assert.Zero(t, enr.Progress)
	assert.False(t, enr.EnrolledAt.IsZero())

	inactive := env.CreateCourse(t, "CS999", prof, 10)
	_, err = env.Courses.Update(ctx, inactive, course.UpdateCourse{IsActive: testutil.BoolPtr(false)}, prof)
	require.NoError(t, err)

	tests := []struct {
		name      string
		studentID int64
		courseID  int64
		wantErr   error
	}{
		{name: "already enrolled", studentID: alice.ID, courseID: crs.ID, wantErr: enrollment.ErrAlreadyEnrolled},
		{name: "instructor", studentID: prof.ID, courseID: crs.ID, wantErr: enrollment.ErrNotStudent},
		{name: "unknown student", studentID: 9999, courseID: crs.ID, wantErr: enrollment.ErrStudentNotFound},
		{name: "unknown course", studentID: bob.ID, courseID: 9999, wantErr: course.ErrNotFound},
		{name: "inactive course", studentID: bob.ID, courseID: inactive.ID, wantErr: enrollment.ErrCourseInactive},
		{name: "last seat", studentID: bob.ID, courseID: crs.ID},
		{name: "course full", studentID: carl.ID, courseID: crs.ID, wantErr: enrollment.ErrCourseFull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Enrollments.Enroll(ctx, tt.studentID, tt.courseID)
			assert.Equal(t, tt.wantErr, err)
		})
	}

	t.Run("dropping frees a seat", func(t *testing.T) {
		dropped, err := env.Enrollments.Drop(ctx, enr.ID)
		require.NoError(t, err)
		assert.Equal(t, enrollment.StatusDropped, dropped.Status)

		_, err = env.Enrollments.Enroll(ctx, carl.ID, crs.ID)
		assert.NoError(t, err)

		ids, err := env.Enrollments.CourseIDsOf(ctx, alice.ID)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestService_Enroll_concurrent(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	crs := env.CreateCourse(t, "CS101", env.CreateInstructor(t, "prof"), 3)

	const students = 10
	ids := make([]int64, 0, students)
	for i := 0; i < students; i++ {
		ids = append(ids, env.CreateStudent(t, "student"+string(rune('a'+i)), "").ID)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		full int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := env.Enrollments.Enroll(ctx, id, crs.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if err == enrollment.ErrCourseFull {
				full++
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, students-3, full)

	enrs, err := env.Enrollments.ListByCourse(ctx, crs.ID)
	require.NoError(t, err)
	assert.Len(t, enrs, 3)
}

func TestService_UpdateProgress(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	crs := env.CreateCourse(t, "CS101", env.CreateInstructor(t, "prof"), 10)
	enr := env.Enroll(t, env.CreateStudent(t, "alice", ""), crs)

	for _, p := range []float64{-1, 100.5} {
		_, err := env.Enrollments.UpdateProgress(ctx, enr.ID, p)
		assert.Equal(t, enrollment.ErrInvalidProgress, err)
	}

	enr, err := env.Enrollments.UpdateProgress(ctx, enr.ID, 40)
	require.NoError(t, err)
	assert.Equal(t, 40.0, enr.Progress)
	assert.Equal(t, enrollment.StatusActive, enr.Status)
	assert.True(t, enr.CompletedAt.IsZero())

	enr, err = env.Enrollments.UpdateProgress(ctx, enr.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusCompleted, enr.Status)
	assert.False(t, enr.CompletedAt.IsZero())

	_, err = env.Enrollments.SetFinalGrade(ctx, enr.ID, 101)
	assert.Equal(t, enrollment.ErrInvalidGrade, err)
	enr, err = env.Enrollments.SetFinalGrade(ctx, enr.ID, 87.5)
	require.NoError(t, err)
	require.NotNil(t, enr.FinalGrade)
	assert.Equal(t, 87.5, *enr.FinalGrade)

	_, err = env.Enrollments.UpdateProgress(ctx, 9999, 10)
	assert.Equal(t, enrollment.ErrNotFound, err)
}

func TestService_BulkEnroll(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	prof := env.CreateInstructor(t, "prof")
	crs := env.CreateCourse(t, "CS101", prof, 10)

	already := env.CreateStudent(t, "s1", "1MS21CS001")
	env.Enroll(t, already, crs)
	env.CreateStudent(t, "s2", "1MS21CS002")
	instr := env.CreateInstructor(t, "t3")
	instr.USN = "1MS21CS003"
	_, err := env.UserRepo.UpdateUser(ctx, instr)
	require.NoError(t, err)

	be := enrollment.BulkEnroll{CourseID: crs.ID, Prefix: " 1MS21CS ", Start: 1, End: 4}
	require.NoError(t, be.Validate(env.Validate))

	res, err := env.Enrollments.BulkEnroll(ctx, be)
	require.NoError(t, err)
	assert.Equal(t, []string{"1MS21CS002"}, res.Enrolled)
	assert.Equal(t, []string{"1MS21CS001"}, res.AlreadyEnrolled)
	assert.Equal(t, []enrollment.BulkFailure{
		{USN: "1MS21CS003", Reason: enrollment.ErrNotStudent.Error()},
		{USN: "1MS21CS004", Reason: enrollment.ErrStudentNotFound.Error()},
	}, res.Failed)

	_, err = env.Enrollments.BulkEnroll(ctx, enrollment.BulkEnroll{CourseID: 9999, Prefix: "X", End: 1})
	assert.Equal(t, course.ErrNotFound, err)
}
