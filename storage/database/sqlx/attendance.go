package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/attendance"
)

const attendanceColumns = "id, student_id, course_id, attendance_date, status, remarks, marked_at, marked_by"

type attendanceRow struct {
	ID        int64       `db:"id"`
	StudentID int64       `db:"student_id"`
	CourseID  int64       `db:"course_id"`
	Date      time.Time   `db:"attendance_date"`
	Status    string      `db:"status"`
	Remarks   null.String `db:"remarks"`
	MarkedAt  time.Time   `db:"marked_at"`
	MarkedBy  null.Int64  `db:"marked_by"`
}

func (r attendanceRow) toAttendance() attendance.Attendance {
	return attendance.Attendance{
		ID:        r.ID,
		StudentID: r.StudentID,
		CourseID:  r.CourseID,
		Date:      attendance.Day(r.Date),
		Status:    attendance.Status(r.Status),
		Remarks:   r.Remarks.String,
		MarkedAt:  r.MarkedAt.UTC(),
		MarkedBy:  r.MarkedBy.Ptr(),
	}
}

type attendanceRepository struct {
	repository
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{repository{db: db}}
}

func (repo *attendanceRepository) CreateAttendance(
	ctx context.Context,
	a attendance.Attendance,
	svcExec ...core.DBExecutor,
) (attendance.Attendance, error) {
	q := `INSERT INTO attendance (student_id, course_id, attendance_date, status, remarks, marked_at, marked_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := sqlx.GetContext(
		ctx, repo.getExec(svcExec), &a.ID, q,
		a.StudentID, a.CourseID, a.Date.Format(attendance.DateLayout), string(a.Status), optString(a.Remarks),
		a.MarkedAt, null.Int64FromPtr(a.MarkedBy),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return attendance.Attendance{}, attendance.ErrAlreadyMarked
		}
		return attendance.Attendance{}, errors.Wrap(err, "inserting attendance")
	}
	return a, nil
}

func (repo *attendanceRepository) QueryAttendance(
	ctx context.Context,
	filter attendance.Filter,
	svcExec ...core.DBExecutor,
) ([]attendance.Attendance, error) {
	w := &where{}
	if filter.StudentID != 0 {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.CourseID != 0 {
		w.add("course_id = ?", filter.CourseID)
	}
	if !filter.Date.IsZero() {
		w.add("attendance_date = ?", filter.Date.Format(attendance.DateLayout))
	}

	exec := repo.getExec(svcExec)
	var rows []attendanceRow
	q := exec.Rebind("SELECT " + attendanceColumns + " FROM attendance" + w.String() + " ORDER BY attendance_date DESC, id DESC")
	if err := sqlx.SelectContext(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting attendance")
	}
	records := make([]attendance.Attendance, len(rows))
	for i, r := range rows {
		records[i] = r.toAttendance()
	}
	return records, nil
}
