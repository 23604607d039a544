package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edunex/core/attendance"
	"github.com/trezcool/edunex/core/course"
	"github.com/trezcool/edunex/testutil"
)

func TestService_Mark(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	prof := env.CreateInstructor(t, "prof")
	crs := env.CreateCourse(t, "CS101", prof, 10)
	alice := env.CreateStudent(t, "alice", "")

	rec, err := env.Attendance.Mark(ctx, attendance.Mark{StudentID: alice.ID, CourseID: crs.ID, Status: attendance.StatusPresent}, prof)
	require.NoError(t, err)
	assert.Equal(t, attendance.Day(time.Now()), rec.Date)
	require.NotNil(t, rec.MarkedBy)
	assert.Equal(t, prof.ID, *rec.MarkedBy)

	tests := []struct {
		name    string
		mark    attendance.Mark
		wantErr error
	}{
		{
			name:    "same day",
			mark:    attendance.Mark{StudentID: alice.ID, CourseID: crs.ID, Status: attendance.StatusAbsent},
			wantErr: attendance.ErrAlreadyMarked,
		},
		{
			name:    "bad status",
			mark:    attendance.Mark{StudentID: alice.ID, CourseID: crs.ID, Status: "SLEEPING"},
			wantErr: attendance.ErrInvalidStatus,
		},
		{
			name:    "bad date",
			mark:    attendance.Mark{StudentID: alice.ID, CourseID: crs.ID, Status: attendance.StatusLate, Date: "01/02/2024"},
			wantErr: attendance.ErrInvalidDate,
		},
		{
			name:    "unknown student",
			mark:    attendance.Mark{StudentID: 9999, CourseID: crs.ID, Status: attendance.StatusLate},
			wantErr: attendance.ErrStudentNotFound,
		},
		{
			name:    "unknown course",
			mark:    attendance.Mark{StudentID: alice.ID, CourseID: 9999, Status: attendance.StatusLate},
			wantErr: course.ErrNotFound,
		},
		{
			name: "past date",
			mark: attendance.Mark{StudentID: alice.ID, CourseID: crs.ID, Status: attendance.StatusLate, Date: "2024-01-02"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Attendance.Mark(ctx, tt.mark, prof)
			assert.Equal(t, tt.wantErr, err)
		})
	}

	records, err := env.Attendance.ListByStudentAndCourse(ctx, alice.ID, crs.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].Date.After(records[1].Date))

	onDate, err := env.Attendance.ListByCourseAndDate(ctx, crs.ID, time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, onDate, 1)
	assert.Equal(t, attendance.StatusLate, onDate[0].Status)

	rate, err := env.Attendance.Rate(ctx, alice.ID, crs.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, rate)
}

func TestRate(t *testing.T) {
	rec := func(s attendance.Status) attendance.Attendance { return attendance.Attendance{Status: s} }

	tests := []struct {
		name    string
		records []attendance.Attendance
		want    float64
	}{
		{name: "no records", want: 0},
		{name: "all present", records: []attendance.Attendance{rec(attendance.StatusPresent)}, want: 100},
		{
			name: "late is not present",
			records: []attendance.Attendance{
				rec(attendance.StatusPresent), rec(attendance.StatusLate), rec(attendance.StatusAbsent),
			},
			want: 33.33,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, attendance.Rate(tt.records))
		})
	}
}
