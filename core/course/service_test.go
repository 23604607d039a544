package course_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edunex/core/course"
	"github.com/trezcool/edunex/testutil"
)

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	prof := env.CreateInstructor(t, "prof")
	student := env.CreateStudent(t, "alice", "")

	crs, err := env.Courses.Create(ctx, course.NewCourse{Code: "CS101", Name: "Intro", InstructorID: prof.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, crs.Credits)
	assert.Equal(t, 50, crs.MaxStudents)
	assert.True(t, crs.IsActive)

	tests := []struct {
		name    string
		nc      course.NewCourse
		wantErr error
	}{
		{name: "duplicate code", nc: course.NewCourse{Code: "CS101", Name: "Again", InstructorID: prof.ID}, wantErr: course.ErrCodeExists},
		{name: "student owner", nc: course.NewCourse{Code: "CS102", Name: "Nope", InstructorID: student.ID}, wantErr: course.ErrNotInstructor},
		{name: "unknown owner", nc: course.NewCourse{Code: "CS103", Name: "Nope", InstructorID: 9999}, wantErr: course.ErrNotInstructor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Courses.Create(ctx, tt.nc)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestService_UpdateDelete(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	prof := env.CreateInstructor(t, "prof")
	other := env.CreateInstructor(t, "other")
	admin := env.CreateAdmin(t, "admin")
	crs := env.CreateCourse(t, "CS101", prof, 10)

	_, err := env.Courses.Update(ctx, crs, course.UpdateCourse{Name: "Hijacked"}, other)
	assert.Equal(t, course.ErrNotOwner, err)

	updated, err := env.Courses.Update(ctx, crs, course.UpdateCourse{Name: "Renamed", IsActive: testutil.BoolPtr(false)}, prof)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.False(t, updated.IsActive)

	mine, err := env.Courses.ListByInstructor(ctx, prof.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	assert.Equal(t, course.ErrNotOwner, env.Courses.Delete(ctx, crs, other))
	require.NoError(t, env.Courses.Delete(ctx, crs, admin))
	_, err = env.Courses.GetByID(ctx, crs.ID)
	assert.Equal(t, course.ErrNotFound, err)
}

func TestService_Query(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	prof := env.CreateInstructor(t, "prof")
	_, err := env.Courses.Create(ctx, course.NewCourse{Code: "CS101", Name: "Algorithms", Category: "CS", InstructorID: prof.ID})
	require.NoError(t, err)
	_, err = env.Courses.Create(ctx, course.NewCourse{Code: "MA101", Name: "Calculus", Category: "Math", InstructorID: prof.ID})
	require.NoError(t, err)

	courses, err := env.Courses.Query(ctx, &course.QueryFilter{Search: "algo"}, nil)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "CS101", courses[0].Code)

	courses, err = env.Courses.Query(ctx, &course.QueryFilter{Category: "Math"}, nil)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "MA101", courses[0].Code)
}
