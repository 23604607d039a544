package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/quiz"
)

const (
	quizColumns = "id, course_id, title, description, duration_minutes, total_marks, passing_marks, max_attempts, " +
		"is_active, start_time, end_time, reminded_at, created_at, updated_at"
	questionColumns = "id, quiz_id, text, type, option_a, option_b, option_c, option_d, correct_answer, marks, question_order"
	attemptColumns  = "id, quiz_id, student_id, attempt_number, marks_obtained, total_marks, percentage, status, started_at, submitted_at"
	answerColumns   = "id, attempt_id, question_id, answer, is_correct, marks_awarded"

	attemptNumberConstraint = "quiz_attempts_number_key"
)

type quizRow struct {
	ID              int64     `db:"id"`
	CourseID        int64     `db:"course_id"`
	Title           string    `db:"title"`
	Description     string    `db:"description"`
	DurationMinutes int       `db:"duration_minutes"`
	TotalMarks      int       `db:"total_marks"`
	PassingMarks    int       `db:"passing_marks"`
	MaxAttempts     int       `db:"max_attempts"`
	IsActive        bool      `db:"is_active"`
	StartTime       null.Time `db:"start_time"`
	EndTime         null.Time `db:"end_time"`
	RemindedAt      null.Time `db:"reminded_at"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func utcTimePtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

func (r quizRow) toQuiz() quiz.Quiz {
	return quiz.Quiz{
		ID:              r.ID,
		CourseID:        r.CourseID,
		Title:           r.Title,
		Description:     r.Description,
		DurationMinutes: r.DurationMinutes,
		TotalMarks:      r.TotalMarks,
		PassingMarks:    r.PassingMarks,
		MaxAttempts:     r.MaxAttempts,
		IsActive:        r.IsActive,
		StartTime:       utcTimePtr(r.StartTime),
		EndTime:         utcTimePtr(r.EndTime),
		RemindedAt:      utcTimePtr(r.RemindedAt),
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

type questionRow struct {
	ID            int64       `db:"id"`
	QuizID        int64       `db:"quiz_id"`
	Text          string      `db:"text"`
	Type          string      `db:"type"`
	OptionA       null.String `db:"option_a"`
	OptionB       null.String `db:"option_b"`
	OptionC       null.String `db:"option_c"`
	OptionD       null.String `db:"option_d"`
	CorrectAnswer null.String `db:"correct_answer"`
	Marks         int         `db:"marks"`
	Order         int         `db:"question_order"`
}

func (r questionRow) toQuestion() quiz.Question {
	return quiz.Question{
		ID:            r.ID,
		QuizID:        r.QuizID,
		Text:          r.Text,
		Type:          quiz.QuestionType(r.Type),
		OptionA:       r.OptionA.String,
		OptionB:       r.OptionB.String,
		OptionC:       r.OptionC.String,
		OptionD:       r.OptionD.String,
		CorrectAnswer: r.CorrectAnswer.String,
		Marks:         r.Marks,
		Order:         r.Order,
	}
}

type attemptRow struct {
	ID            int64     `db:"id"`
	QuizID        int64     `db:"quiz_id"`
	StudentID     int64     `db:"student_id"`
	AttemptNumber int       `db:"attempt_number"`
	MarksObtained int       `db:"marks_obtained"`
	TotalMarks    int       `db:"total_marks"`
	Percentage    float64   `db:"percentage"`
	Status        string    `db:"status"`
	StartedAt     time.Time `db:"started_at"`
	SubmittedAt   null.Time `db:"submitted_at"`
}

func (r attemptRow) toAttempt() quiz.Attempt {
	return quiz.Attempt{
		ID:            r.ID,
		QuizID:        r.QuizID,
		StudentID:     r.StudentID,
		AttemptNumber: r.AttemptNumber,
		MarksObtained: r.MarksObtained,
		TotalMarks:    r.TotalMarks,
		Percentage:    r.Percentage,
		Status:        quiz.AttemptStatus(r.Status),
		StartedAt:     r.StartedAt.UTC(),
		SubmittedAt:   utcTimePtr(r.SubmittedAt),
	}
}

type answerRow struct {
	ID           int64     `db:"id"`
	AttemptID    int64     `db:"attempt_id"`
	QuestionID   int64     `db:"question_id"`
	Answer       string    `db:"answer"`
	IsCorrect    null.Bool `db:"is_correct"`
	MarksAwarded int       `db:"marks_awarded"`
}

func (r answerRow) toAnswer() quiz.Answer {
	return quiz.Answer{
		ID:           r.ID,
		AttemptID:    r.AttemptID,
		QuestionID:   r.QuestionID,
		Answer:       r.Answer,
		IsCorrect:    r.IsCorrect.Ptr(),
		MarksAwarded: r.MarksAwarded,
	}
}

func optString(s string) null.String { return null.NewString(s, s != "") }

type quizRepository struct {
	repository
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *sqlx.DB) *quizRepository {
	return &quizRepository{repository{db: db}}
}

func quizArgs(q quiz.Quiz) []interface{} {
	return []interface{}{
		q.CourseID, q.Title, q.Description, q.DurationMinutes, q.TotalMarks, q.PassingMarks, q.MaxAttempts, q.IsActive,
		null.TimeFromPtr(q.StartTime), null.TimeFromPtr(q.EndTime), null.TimeFromPtr(q.RemindedAt), q.CreatedAt, q.UpdatedAt,
	}
}

func (repo *quizRepository) CreateQuiz(ctx context.Context, q quiz.Quiz, svcExec ...core.DBExecutor) (quiz.Quiz, error) {
	query := `INSERT INTO quizzes (course_id, title, description, duration_minutes, total_marks, passing_marks, max_attempts,
		is_active, start_time, end_time, reminded_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`
	if err := sqlx.GetContext(ctx, repo.getExec(svcExec), &q.ID, query, quizArgs(q)...); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "inserting quiz")
	}
	return q, nil
}

func (repo *quizRepository) GetQuiz(ctx context.Context, id int64, svcExec ...core.DBExecutor) (quiz.Quiz, error) {
	var row quizRow
	if err := sqlx.GetContext(ctx, repo.getExec(svcExec), &row, "SELECT "+quizColumns+" FROM quizzes WHERE id = $1", id); err != nil {
		return quiz.Quiz{}, trapNoRowsErr(err, quiz.ErrQuizNotFound, "selecting quiz")
	}
	return row.toQuiz(), nil
}

func (repo *quizRepository) QueryQuizzes(ctx context.Context, filter quiz.Filter, svcExec ...core.DBExecutor) ([]quiz.Quiz, error) {
	w := &where{}
	if len(filter.CourseIDs) > 0 {
		if err := w.in("course_id", filter.CourseIDs); err != nil {
			return nil, errors.Wrap(err, "expanding course ids")
		}
	}
	if filter.ActiveOnly {
		w.add("is_active")
	}
	if !filter.StartsAfter.IsZero() {
		w.add("start_time > ?", filter.StartsAfter)
	}
	if !filter.StartsBefore.IsZero() {
		w.add("start_time <= ?", filter.StartsBefore)
	}
	if filter.NotReminded {
		w.add("reminded_at IS NULL")
	}

	exec := repo.getExec(svcExec)
	var rows []quizRow
	q := exec.Rebind("SELECT " + quizColumns + " FROM quizzes" + w.String() + " ORDER BY created_at DESC, id DESC")
	if err := sqlx.SelectContext(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting quizzes")
	}
	quizzes := make([]quiz.Quiz, len(rows))
	for i, r := range rows {
		quizzes[i] = r.toQuiz()
	}
	return quizzes, nil
}

func (repo *quizRepository) UpdateQuiz(ctx context.Context, q quiz.Quiz, svcExec ...core.DBExecutor) (quiz.Quiz, error) {
	query := `UPDATE quizzes SET course_id = $1, title = $2, description = $3, duration_minutes = $4, total_marks = $5,
		passing_marks = $6, max_attempts = $7, is_active = $8, start_time = $9, end_time = $10, reminded_at = $11,
		created_at = $12, updated_at = $13 WHERE id = $14`
	res, err := repo.getExec(svcExec).ExecContext(ctx, query, append(quizArgs(q), q.ID)...)
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "updating quiz")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return quiz.Quiz{}, quiz.ErrQuizNotFound
	}
	return q, nil
}

func (repo *quizRepository) SetRemindedAt(ctx context.Context, id int64, at time.Time, svcExec ...core.DBExecutor) error {
	res, err := repo.getExec(svcExec).ExecContext(ctx, "UPDATE quizzes SET reminded_at = $1 WHERE id = $2", at, id)
	if err != nil {
		return errors.Wrap(err, "marking quiz reminded")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return quiz.ErrQuizNotFound
	}
	return nil
}

func (repo *quizRepository) DeleteQuiz(ctx context.Context, id int64, svcExec ...core.DBExecutor) error {
	res, err := repo.getExec(svcExec).ExecContext(ctx, "DELETE FROM quizzes WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return quiz.ErrQuizNotFound
	}
	return nil
}

func (repo *quizRepository) CreateQuestion(ctx context.Context, q quiz.Question, svcExec ...core.DBExecutor) (quiz.Question, error) {
	query := `INSERT INTO questions (quiz_id, text, type, option_a, option_b, option_c, option_d, correct_answer, marks, question_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	err := sqlx.GetContext(
		ctx, repo.getExec(svcExec), &q.ID, query,
		q.QuizID, q.Text, string(q.Type), optString(q.OptionA), optString(q.OptionB), optString(q.OptionC), optString(q.OptionD),
		optString(q.CorrectAnswer), q.Marks, q.Order,
	)
	if err != nil {
		return quiz.Question{}, errors.Wrap(err, "inserting question")
	}
	return q, nil
}

func (repo *quizRepository) QueryQuestions(ctx context.Context, quizID int64, svcExec ...core.DBExecutor) ([]quiz.Question, error) {
	var rows []questionRow
	q := "SELECT " + questionColumns + " FROM questions WHERE quiz_id = $1 ORDER BY question_order, id"
	if err := sqlx.SelectContext(ctx, repo.getExec(svcExec), &rows, q, quizID); err != nil {
		return nil, errors.Wrap(err, "selecting questions")
	}
	questions := make([]quiz.Question, len(rows))
	for i, r := range rows {
		questions[i] = r.toQuestion()
	}
	return questions, nil
}

func (repo *quizRepository) CountAttempts(ctx context.Context, quizID, studentID int64, svcExec ...core.DBExecutor) (int, error) {
	var n int
	q := "SELECT COUNT(*) FROM quiz_attempts WHERE quiz_id = $1 AND student_id = $2"
	err := sqlx.GetContext(ctx, repo.getExec(svcExec), &n, q, quizID, studentID)
	return n, errors.Wrap(err, "counting attempts")
}

func (repo *quizRepository) CreateAttempt(ctx context.Context, a quiz.Attempt, svcExec ...core.DBExecutor) (quiz.Attempt, error) {
	q := `INSERT INTO quiz_attempts (quiz_id, student_id, attempt_number, marks_obtained, total_marks, percentage, status, started_at, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	err := sqlx.GetContext(
		ctx, repo.getExec(svcExec), &a.ID, q,
		a.QuizID, a.StudentID, a.AttemptNumber, a.MarksObtained, a.TotalMarks, a.Percentage, string(a.Status),
		a.StartedAt, null.TimeFromPtr(a.SubmittedAt),
	)
	if err != nil {
		if isUniqueViolation(err, attemptNumberConstraint) {
			return quiz.Attempt{}, quiz.ErrDuplicateAttempt
		}
		return quiz.Attempt{}, errors.Wrap(err, "inserting attempt")
	}
	return a, nil
}

func (repo *quizRepository) GetAttempt(ctx context.Context, id int64, forUpdate bool, svcExec ...core.DBExecutor) (quiz.Attempt, error) {
	q := "SELECT " + attemptColumns + " FROM quiz_attempts WHERE id = $1"
	if forUpdate {
		q += " FOR UPDATE"
	}
	var row attemptRow
	if err := sqlx.GetContext(ctx, repo.getExec(svcExec), &row, q, id); err != nil {
		return quiz.Attempt{}, trapNoRowsErr(err, quiz.ErrAttemptNotFound, "selecting attempt")
	}
	return row.toAttempt(), nil
}

func (repo *quizRepository) QueryAttempts(ctx context.Context, filter quiz.AttemptFilter, svcExec ...core.DBExecutor) ([]quiz.Attempt, error) {
	w := &where{}
	if filter.QuizID != 0 {
		w.add("quiz_id = ?", filter.QuizID)
	}
	if filter.StudentID != 0 {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.CourseID != 0 {
		w.add("quiz_id IN (SELECT id FROM quizzes WHERE course_id = ?)", filter.CourseID)
	}
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}

	exec := repo.getExec(svcExec)
	var rows []attemptRow
	q := exec.Rebind("SELECT " + attemptColumns + " FROM quiz_attempts" + w.String() + " ORDER BY started_at, id")
	if err := sqlx.SelectContext(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting attempts")
	}
	attempts := make([]quiz.Attempt, len(rows))
	for i, r := range rows {
		attempts[i] = r.toAttempt()
	}
	return attempts, nil
}

func (repo *quizRepository) UpdateAttempt(ctx context.Context, a quiz.Attempt, svcExec ...core.DBExecutor) (quiz.Attempt, error) {
	q := `UPDATE quiz_attempts SET marks_obtained = $1, total_marks = $2, percentage = $3, status = $4, submitted_at = $5
		WHERE id = $6`
	res, err := repo.getExec(svcExec).ExecContext(
		ctx, q, a.MarksObtained, a.TotalMarks, a.Percentage, string(a.Status), null.TimeFromPtr(a.SubmittedAt), a.ID,
	)
	if err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "updating attempt")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return quiz.Attempt{}, quiz.ErrAttemptNotFound
	}
	return a, nil
}

func (repo *quizRepository) CreateAnswers(ctx context.Context, answers []quiz.Answer, svcExec ...core.DBExecutor) ([]quiz.Answer, error) {
	exec := repo.getExec(svcExec)
	q := `INSERT INTO answers (attempt_id, question_id, answer, is_correct, marks_awarded)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	created := make([]quiz.Answer, 0, len(answers))
	for _, ans := range answers {
		err := sqlx.GetContext(
			ctx, exec, &ans.ID, q,
			ans.AttemptID, ans.QuestionID, ans.Answer, null.BoolFromPtr(ans.IsCorrect), ans.MarksAwarded,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, quiz.ErrDuplicateAnswer
			}
			return nil, errors.Wrap(err, "inserting answer")
		}
		created = append(created, ans)
	}
	return created, nil
}

func (repo *quizRepository) QueryAnswers(ctx context.Context, attemptID int64, svcExec ...core.DBExecutor) ([]quiz.Answer, error) {
	var rows []answerRow
	q := "SELECT " + answerColumns + " FROM answers WHERE attempt_id = $1 ORDER BY id"
	if err := sqlx.SelectContext(ctx, repo.getExec(svcExec), &rows, q, attemptID); err != nil {
		return nil, errors.Wrap(err, "selecting answers")
	}
	answers := make([]quiz.Answer, len(rows))
	for i, r := range rows {
		answers[i] = r.toAnswer()
	}
	return answers, nil
}

func (repo *quizRepository) UpdateAnswer(ctx context.Context, ans quiz.Answer, svcExec ...core.DBExecutor) (quiz.Answer, error) {
	q := "UPDATE answers SET answer = $1, is_correct = $2, marks_awarded = $3 WHERE id = $4"
	res, err := repo.getExec(svcExec).ExecContext(ctx, q, ans.Answer, null.BoolFromPtr(ans.IsCorrect), ans.MarksAwarded, ans.ID)
	if err != nil {
		return quiz.Answer{}, errors.Wrap(err, "updating answer")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return quiz.Answer{}, quiz.ErrAnswerNotFound
	}
	return ans, nil
}
