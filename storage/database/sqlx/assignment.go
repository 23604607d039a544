package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/assignment"
)

const (
	assignmentColumns = "id, course_id, title, description, due_date, max_marks, attachment_url, created_at, updated_at"
	submissionColumns = "s.id, s.assignment_id, s.student_id, s.submission_url, s.content, s.status, s.marks_obtained, s.feedback, " +
		"s.submitted_at, s.graded_at"
)

type assignmentRow struct {
	ID            int64       `db:"id"`
	CourseID      int64       `db:"course_id"`
	Title         string      `db:"title"`
	Description   string      `db:"description"`
	DueDate       time.Time   `db:"due_date"`
	MaxMarks      int         `db:"max_marks"`
	AttachmentURL null.String `db:"attachment_url"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

func (r assignmentRow) toAssignment() assignment.Assignment {
	return assignment.Assignment{
		ID:            r.ID,
		CourseID:      r.CourseID,
		Title:         r.Title,
		Description:   r.Description,
		DueDate:       r.DueDate.UTC(),
		MaxMarks:      r.MaxMarks,
		AttachmentURL: r.AttachmentURL.String,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type submissionRow struct {
	ID            int64       `db:"id"`
	AssignmentID  int64       `db:"assignment_id"`
	StudentID     int64       `db:"student_id"`
	SubmissionURL null.String `db:"submission_url"`
	Content       null.String `db:"content"`
	Status        string      `db:"status"`
	MarksObtained null.Int    `db:"marks_obtained"`
	Feedback      null.String `db:"feedback"`
	SubmittedAt   time.Time   `db:"submitted_at"`
	GradedAt      null.Time   `db:"graded_at"`
}

func (r submissionRow) toSubmission() assignment.Submission {
	return assignment.Submission{
		ID:            r.ID,
		AssignmentID:  r.AssignmentID,
		StudentID:     r.StudentID,
		SubmissionURL: r.SubmissionURL.String,
		Content:       r.Content.String,
		Status:        assignment.SubmissionStatus(r.Status),
		MarksObtained: r.MarksObtained.Ptr(),
		Feedback:      r.Feedback.String,
		SubmittedAt:   r.SubmittedAt.UTC(),
		GradedAt:      utcTimePtr(r.GradedAt),
	}
}

type assignmentRepository struct {
	repository
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *sqlx.DB) *assignmentRepository {
	return &assignmentRepository{repository{db: db}}
}

func (repo *assignmentRepository) CreateAssignment(
	ctx context.Context,
	a assignment.Assignment,
	svcExec ...core.DBExecutor,
) (assignment.Assignment, error) {
	q := `INSERT INTO assignments (course_id, title, description, due_date, max_marks, attachment_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := sqlx.GetContext(
		ctx, repo.getExec(svcExec), &a.ID, q,
		a.CourseID, a.Title, a.Description, a.DueDate, a.MaxMarks, optString(a.AttachmentURL), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo *assignmentRepository) GetAssignment(ctx context.Context, id int64, svcExec ...core.DBExecutor) (assignment.Assignment, error) {
	var row assignmentRow
	q := "SELECT " + assignmentColumns + " FROM assignments WHERE id = $1"
	if err := sqlx.GetContext(ctx, repo.getExec(svcExec), &row, q, id); err != nil {
		return assignment.Assignment{}, trapNoRowsErr(err, assignment.ErrNotFound, "selecting assignment")
	}
	return row.toAssignment(), nil
}

func (repo *assignmentRepository) QueryAssignments(
	ctx context.Context,
	courseIDs []int64,
	svcExec ...core.DBExecutor,
) ([]assignment.Assignment, error) {
	w := &where{}
	if len(courseIDs) > 0 {
		if err := w.in("course_id", courseIDs); err != nil {
			return nil, errors.Wrap(err, "expanding course ids")
		}
	}
	exec := repo.getExec(svcExec)
	var rows []assignmentRow
	q := exec.Rebind("SELECT " + assignmentColumns + " FROM assignments" + w.String() + " ORDER BY due_date, id")
	if err := sqlx.SelectContext(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting assignments")
	}
	assignments := make([]assignment.Assignment, len(rows))
	for i, r := range rows {
		assignments[i] = r.toAssignment()
	}
	return assignments, nil
}

func (repo *assignmentRepository) UpdateAssignment(
	ctx context.Context,
	a assignment.Assignment,
	svcExec ...core.DBExecutor,
) (assignment.Assignment, error) {
	q := `UPDATE assignments SET title = $1, description = $2, due_date = $3, max_marks = $4, attachment_url = $5, updated_at = $6
		WHERE id = $7`
	res, err := repo.getExec(svcExec).ExecContext(
		ctx, q, a.Title, a.Description, a.DueDate, a.MaxMarks, optString(a.AttachmentURL), a.UpdatedAt, a.ID,
	)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return a, nil
}

func (repo *assignmentRepository) DeleteAssignment(ctx context.Context, id int64, svcExec ...core.DBExecutor) error {
	res, err := repo.getExec(svcExec).ExecContext(ctx, "DELETE FROM assignments WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assignment.ErrNotFound
	}
	return nil
}

func submissionArgs(s assignment.Submission) []interface{} {
	return []interface{}{
		optString(s.SubmissionURL), optString(s.Content), string(s.Status), null.IntFromPtr(s.MarksObtained),
		optString(s.Feedback), s.SubmittedAt, null.TimeFromPtr(s.GradedAt),
	}
}

func (repo *assignmentRepository) CreateSubmission(
	ctx context.Context,
	s assignment.Submission,
	svcExec ...core.DBExecutor,
) (assignment.Submission, error) {
	q := `INSERT INTO submissions (submission_url, content, status, marks_obtained, feedback, submitted_at, graded_at,
		assignment_id, student_id) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	err := sqlx.GetContext(ctx, repo.getExec(svcExec), &s.ID, q, append(submissionArgs(s), s.AssignmentID, s.StudentID)...)
	if err != nil {
		if isUniqueViolation(err) {
			return assignment.Submission{}, assignment.ErrSubmissionExists
		}
		return assignment.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return s, nil
}

func (repo *assignmentRepository) getSubmission(
	ctx context.Context,
	exec sqlx.ExtContext,
	cond string,
	args ...interface{},
) (assignment.Submission, error) {
	var row submissionRow
	if err := sqlx.GetContext(ctx, exec, &row, "SELECT "+submissionColumns+" FROM submissions s WHERE "+cond, args...); err != nil {
		return assignment.Submission{}, trapNoRowsErr(err, assignment.ErrSubmissionNotFound, "selecting submission")
	}
	return row.toSubmission(), nil
}

func (repo *assignmentRepository) GetSubmission(ctx context.Context, id int64, svcExec ...core.DBExecutor) (assignment.Submission, error) {
	return repo.getSubmission(ctx, repo.getExec(svcExec), "s.id = $1", id)
}

func (repo *assignmentRepository) FindSubmission(
	ctx context.Context,
	assignmentID, studentID int64,
	svcExec ...core.DBExecutor,
) (assignment.Submission, error) {
	return repo.getSubmission(ctx, repo.getExec(svcExec), "s.assignment_id = $1 AND s.student_id = $2", assignmentID, studentID)
}

func (repo *assignmentRepository) QuerySubmissions(
	ctx context.Context,
	filter assignment.SubmissionFilter,
	svcExec ...core.DBExecutor,
) ([]assignment.Submission, error) {
	w := &where{}
	from := " FROM submissions s"
	if filter.AssignmentID != 0 {
		w.add("s.assignment_id = ?", filter.AssignmentID)
	}
	if filter.StudentID != 0 {
		w.add("s.student_id = ?", filter.StudentID)
	}
	if filter.CourseID != 0 {
		from += " JOIN assignments a ON a.id = s.assignment_id"
		w.add("a.course_id = ?", filter.CourseID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		if err := w.in("s.status", statuses); err != nil {
			return nil, errors.Wrap(err, "expanding statuses")
		}
	}

	exec := repo.getExec(svcExec)
	var rows []submissionRow
	q := exec.Rebind("SELECT " + submissionColumns + from + w.String() + " ORDER BY s.submitted_at DESC, s.id DESC")
	if err := sqlx.SelectContext(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	subs := make([]assignment.Submission, len(rows))
	for i, r := range rows {
		subs[i] = r.toSubmission()
	}
	return subs, nil
}

func (repo *assignmentRepository) UpdateSubmission(
	ctx context.Context,
	s assignment.Submission,
	svcExec ...core.DBExecutor,
) (assignment.Submission, error) {
	q := `UPDATE submissions SET submission_url = $1, content = $2, status = $3, marks_obtained = $4, feedback = $5,
		submitted_at = $6, graded_at = $7 WHERE id = $8`
	res, err := repo.getExec(svcExec).ExecContext(ctx, q, append(submissionArgs(s), s.ID)...)
	if err != nil {
		return assignment.Submission{}, errors.Wrap(err, "updating submission")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	return s, nil
}
