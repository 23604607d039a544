package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/course"
)

const courseColumns = "id, code, name, description, category, credits, max_students, is_active, instructor_id, created_at, updated_at"

var courseOrderColumns = map[string]string{
	"id":         "id",
	"code":       "code",
	"name":       "name",
	"category":   "category",
	"created_at": "created_at",
}

type courseRow struct {
	ID           int64     `db:"id"`
	Code         string    `db:"code"`
	Name         string    `db:"name"`
	Description  string    `db:"description"`
	Category     string    `db:"category"`
	Credits      int       `db:"credits"`
	MaxStudents  int       `db:"max_students"`
	IsActive     bool      `db:"is_active"`
	InstructorID int64     `db:"instructor_id"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r courseRow) toCourse() course.Course {
	return course.Course{
		ID:           r.ID,
		Code:         r.Code,
		Name:         r.Name,
		Description:  r.Description,
		Category:     r.Category,
		Credits:      r.Credits,
		MaxStudents:  r.MaxStudents,
		IsActive:     r.IsActive,
		InstructorID: r.InstructorID,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type courseRepository struct {
	repository
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{repository{db: db}}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course, svcExec ...core.DBExecutor) (course.Course, error) {
	q := `INSERT INTO courses (code, name, description, category, credits, max_students, is_active, instructor_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	err := sqlx.GetContext(
		ctx, repo.getExec(svcExec), &c.ID, q,
		c.Code, c.Name, c.Description, c.Category, c.Credits, c.MaxStudents, c.IsActive, c.InstructorID, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "courses_code_key") {
			return course.Course{}, course.ErrCodeExists
		}
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo *courseRepository) QueryCourses(
	ctx context.Context,
	filter *course.QueryFilter,
	ordering []core.DBOrdering,
	svcExec ...core.DBExecutor,
) ([]course.Course, error) {
	w := &where{}
	if filter != nil {
		if filter.Search != "" {
			s := "%" + strings.ToLower(filter.Search) + "%"
			w.add("(LOWER(code) LIKE ? OR LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", s, s, s)
		}
		if filter.Category != "" {
			w.add("LOWER(category) = LOWER(?)", filter.Category)
		}
		if filter.InstructorID != 0 {
			w.add("instructor_id = ?", filter.InstructorID)
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
	}

	exec := repo.getExec(svcExec)
	q := exec.Rebind("SELECT " + courseColumns + " FROM courses" + w.String() + orderBy(ordering, courseOrderColumns, "id"))
	var rows []courseRow
	if err := sqlx.SelectContext(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	courses := make([]course.Course, len(rows))
	for i, r := range rows {
		courses[i] = r.toCourse()
	}
	return courses, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id int64, svcExec ...core.DBExecutor) (course.Course, error) {
	var row courseRow
	q := "SELECT " + courseColumns + " FROM courses WHERE id = $1"
	if err := sqlx.GetContext(ctx, repo.getExec(svcExec), &row, q, id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "selecting course")
	}
	return row.toCourse(), nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course, svcExec ...core.DBExecutor) (course.Course, error) {
	q := `UPDATE courses SET code = $1, name = $2, description = $3, category = $4, credits = $5, max_students = $6,
		is_active = $7, instructor_id = $8, updated_at = $9 WHERE id = $10`
	res, err := repo.getExec(svcExec).ExecContext(
		ctx, q,
		c.Code, c.Name, c.Description, c.Category, c.Credits, c.MaxStudents, c.IsActive, c.InstructorID, c.UpdatedAt, c.ID,
	)
	if err != nil {
		if isUniqueViolation(err, "courses_code_key") {
			return course.Course{}, course.ErrCodeExists
		}
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return c, nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id int64, svcExec ...core.DBExecutor) error {
	res, err := repo.getExec(svcExec).ExecContext(ctx, "DELETE FROM courses WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.ErrNotFound
	}
	return nil
}
