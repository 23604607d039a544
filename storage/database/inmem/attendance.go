package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) CreateAttendance(
	ctx context.Context,
	a attendance.Attendance,
	_ ...core.DBExecutor,
) (attendance.Attendance, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a.Date = attendance.Day(a.Date)
	for _, other := range repo.db.attendance {
		if other.StudentID == a.StudentID && other.CourseID == a.CourseID && other.Date.Equal(a.Date) {
			return attendance.Attendance{}, attendance.ErrAlreadyMarked
		}
	}
	a.ID = repo.db.nextID("attendance")
	repo.db.attendance[a.ID] = a
	return a, nil
}

func (repo *attendanceRepository) QueryAttendance(
	ctx context.Context,
	filter attendance.Filter,
	_ ...core.DBExecutor,
) ([]attendance.Attendance, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	day := attendance.Day(filter.Date)
	records := make([]attendance.Attendance, 0)
	for _, a := range repo.db.attendance {
		if filter.StudentID != 0 && a.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != 0 && a.CourseID != filter.CourseID {
			continue
		}
		if !filter.Date.IsZero() && !a.Date.Equal(day) {
			continue
		}
		records = append(records, a)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.After(records[j].Date)
		}
		return records[i].ID > records[j].ID
	})
	return records, nil
}
