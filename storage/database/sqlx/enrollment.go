package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/enrollment"
)

const enrollmentColumns = "id, student_id, course_id, status, progress, final_grade, enrolled_at, completed_at"

type enrollmentRow struct {
	ID          int64        `db:"id"`
	StudentID   int64        `db:"student_id"`
	CourseID    int64        `db:"course_id"`
	Status      string       `db:"status"`
	Progress    float64      `db:"progress"`
	FinalGrade  null.Float64 `db:"final_grade"`
	EnrolledAt  time.Time    `db:"enrolled_at"`
	CompletedAt null.Time    `db:"completed_at"`
}

func (r enrollmentRow) toEnrollment() enrollment.Enrollment {
	return enrollment.Enrollment{
		ID:          r.ID,
		StudentID:   r.StudentID,
		CourseID:    r.CourseID,
		Status:      enrollment.Status(r.Status),
		Progress:    r.Progress,
		FinalGrade:  r.FinalGrade.Ptr(),
		EnrolledAt:  r.EnrolledAt.UTC(),
		CompletedAt: r.CompletedAt.Time.UTC(),
	}
}

type enrollmentRepository struct {
	repository
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) *enrollmentRepository {
	return &enrollmentRepository{repository{db: db}}
}

func (repo *enrollmentRepository) LockCourse(ctx context.Context, courseID int64, svcExec ...core.DBExecutor) error {
	var id int64
	err := sqlx.GetContext(ctx, repo.getExec(svcExec), &id, "SELECT id FROM courses WHERE id = $1 FOR UPDATE", courseID)
	return errors.Wrap(err, "locking course")
}

func (repo *enrollmentRepository) CountSeats(ctx context.Context, courseID int64, svcExec ...core.DBExecutor) (int, error) {
	var n int
	q := "SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status <> $2"
	err := sqlx.GetContext(ctx, repo.getExec(svcExec), &n, q, courseID, string(enrollment.StatusDropped))
	return n, errors.Wrap(err, "counting seats")
}

func (repo *enrollmentRepository) CreateEnrollment(
	ctx context.Context,
	e enrollment.Enrollment,
	svcExec ...core.DBExecutor,
) (enrollment.Enrollment, error) {
	q := `INSERT INTO enrollments (student_id, course_id, status, progress, final_grade, enrolled_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := sqlx.GetContext(
		ctx, repo.getExec(svcExec), &e.ID, q,
		e.StudentID, e.CourseID, string(e.Status), e.Progress,
		null.Float64FromPtr(e.FinalGrade), e.EnrolledAt, null.NewTime(e.CompletedAt, !e.CompletedAt.IsZero()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return e, nil
}

func (repo *enrollmentRepository) getOne(ctx context.Context, exec sqlx.ExtContext, cond string, args ...interface{}) (enrollment.Enrollment, error) {
	var row enrollmentRow
	if err := sqlx.GetContext(ctx, exec, &row, "SELECT "+enrollmentColumns+" FROM enrollments WHERE "+cond, args...); err != nil {
		return enrollment.Enrollment{}, trapNoRowsErr(err, enrollment.ErrNotFound, "selecting enrollment")
	}
	return row.toEnrollment(), nil
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, id int64, svcExec ...core.DBExecutor) (enrollment.Enrollment, error) {
	return repo.getOne(ctx, repo.getExec(svcExec), "id = $1", id)
}

func (repo *enrollmentRepository) FindEnrollment(
	ctx context.Context,
	studentID, courseID int64,
	svcExec ...core.DBExecutor,
) (enrollment.Enrollment, error) {
	return repo.getOne(ctx, repo.getExec(svcExec), "student_id = $1 AND course_id = $2", studentID, courseID)
}

func (repo *enrollmentRepository) query(ctx context.Context, exec sqlx.ExtContext, cond string, arg interface{}) ([]enrollment.Enrollment, error) {
	var rows []enrollmentRow
	q := "SELECT " + enrollmentColumns + " FROM enrollments WHERE " + cond + " ORDER BY enrolled_at DESC, id DESC"
	if err := sqlx.SelectContext(ctx, exec, &rows, q, arg); err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	enrs := make([]enrollment.Enrollment, len(rows))
	for i, r := range rows {
		enrs[i] = r.toEnrollment()
	}
	return enrs, nil
}

func (repo *enrollmentRepository) QueryByStudent(ctx context.Context, studentID int64, svcExec ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	return repo.query(ctx, repo.getExec(svcExec), "student_id = $1", studentID)
}

func (repo *enrollmentRepository) QueryByCourse(ctx context.Context, courseID int64, svcExec ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	return repo.query(ctx, repo.getExec(svcExec), "course_id = $1", courseID)
}

func (repo *enrollmentRepository) UpdateEnrollment(
	ctx context.Context,
	e enrollment.Enrollment,
	svcExec ...core.DBExecutor,
) (enrollment.Enrollment, error) {
	q := "UPDATE enrollments SET status = $1, progress = $2, final_grade = $3, completed_at = $4 WHERE id = $5"
	res, err := repo.getExec(svcExec).ExecContext(
		ctx, q,
		string(e.Status), e.Progress, null.Float64FromPtr(e.FinalGrade), null.NewTime(e.CompletedAt, !e.CompletedAt.IsZero()), e.ID,
	)
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	return e, nil
}
