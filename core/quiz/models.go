package quiz

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edunex/core"
)

type QuestionType string

const (
	TypeMCQ         QuestionType = "MCQ"
	TypeTrueFalse   QuestionType = "TRUE_FALSE"
	TypeShortAnswer QuestionType = "SHORT_ANSWER"
)

func (t QuestionType) IsValid() bool {
	switch t {
	case TypeMCQ, TypeTrueFalse, TypeShortAnswer:
		return true
	}
	return false
}

// AutoGraded reports whether answers to this type are scored by exact match.
func (t QuestionType) AutoGraded() bool { return t == TypeMCQ || t == TypeTrueFalse }

type AttemptStatus string

const (
	StatusInProgress AttemptStatus = "IN_PROGRESS"
	StatusSubmitted  AttemptStatus = "SUBMITTED"
	StatusGraded     AttemptStatus = "GRADED"
)

type Quiz struct {
	ID              int64      `json:"id"`
	CourseID        int64      `json:"course_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	DurationMinutes int        `json:"duration_minutes"`
	TotalMarks      int        `json:"total_marks"`
	PassingMarks    int        `json:"passing_marks"`
	MaxAttempts     int        `json:"max_attempts"`
	IsActive        bool       `json:"is_active"`
	StartTime       *time.Time `json:"start_time"` // UTC
	EndTime         *time.Time `json:"end_time"`   // UTC
	RemindedAt      *time.Time `json:"-"`
	CreatedAt       time.Time  `json:"created_at"` // UTC
	UpdatedAt       time.Time  `json:"updated_at"` // UTC
}

// checkWindow returns ErrNotYetOpen or ErrWindowClosed when now is outside the quiz window.
func (q Quiz) checkWindow(now time.Time) error {
	if q.StartTime != nil && now.Before(*q.StartTime) {
		return ErrNotYetOpen
	}
	if q.EndTime != nil && now.After(*q.EndTime) {
		return ErrWindowClosed
	}
	return nil
}

type Question struct {
	ID            int64        `json:"id"`
	QuizID        int64        `json:"quiz_id"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	OptionA       string       `json:"option_a,omitempty"`
	OptionB       string       `json:"option_b,omitempty"`
	OptionC       string       `json:"option_c,omitempty"`
	OptionD       string       `json:"option_d,omitempty"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Marks         int          `json:"marks"`
	Order         int          `json:"question_order"`
}

type Attempt struct {
	ID            int64         `json:"id"`
	QuizID        int64         `json:"quiz_id"`
	StudentID     int64         `json:"student_id"`
	AttemptNumber int           `json:"attempt_number"`
	MarksObtained int           `json:"marks_obtained"`
	TotalMarks    int           `json:"total_marks"`
	Percentage    float64       `json:"percentage"`
	Status        AttemptStatus `json:"status"`
	StartedAt     time.Time     `json:"started_at"`   // UTC
	SubmittedAt   *time.Time    `json:"submitted_at"` // UTC

	// PendingManualGrading counts the short answers awaiting an instructor. Not persisted.
	PendingManualGrading int `json:"pending_manual_grading"`
}

type Answer struct {
	ID           int64  `json:"id"`
	AttemptID    int64  `json:"attempt_id"`
	QuestionID   int64  `json:"question_id"`
	Answer       string `json:"answer"`
	IsCorrect    *bool  `json:"is_correct"` // nil until graded
	MarksAwarded int    `json:"marks_awarded"`
}

type AttemptDetail struct {
	Attempt
	Answers []Answer `json:"answers"`
}

// Standing is one line of a quiz leaderboard.
type Standing struct {
	Rank       int     `json:"rank"`
	StudentID  int64   `json:"student_id"`
	Percentage float64 `json:"percentage"`
}

type NewQuiz struct {
	Title           string     `json:"title" validate:"required,max=200"`
	Description     string     `json:"description"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,gte=1"`
	TotalMarks      *int       `json:"total_marks" validate:"omitempty,gte=0"`
	PassingMarks    *int       `json:"passing_marks" validate:"omitempty,gte=0"`
	MaxAttempts     *int       `json:"max_attempts" validate:"omitempty,gte=1"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
}

func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.Title = core.CleanString(nq.Title)
	nq.Description = core.CleanString(nq.Description)
	if err := validate.Struct(nq); err != nil {
		return err
	}
	return validateWindow(nq.StartTime, nq.EndTime)
}

type UpdateQuiz struct {
	Title           string     `json:"title" validate:"max=200"`
	Description     string     `json:"description"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,gte=1"`
	TotalMarks      *int       `json:"total_marks" validate:"omitempty,gte=0"`
	PassingMarks    *int       `json:"passing_marks" validate:"omitempty,gte=0"`
	MaxAttempts     *int       `json:"max_attempts" validate:"omitempty,gte=1"`
	IsActive        *bool      `json:"is_active"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
}

func (uq *UpdateQuiz) Validate(validate *validator.Validate) error {
	uq.Title = core.CleanString(uq.Title)
	uq.Description = core.CleanString(uq.Description)
	if err := validate.Struct(uq); err != nil {
		return err
	}
	return validateWindow(uq.StartTime, uq.EndTime)
}

func validateWindow(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return core.NewValidationError(ErrInvalidWindow, core.FieldError{Field: "end_time", Error: ErrInvalidWindow.Error()})
	}
	return nil
}

type NewQuestion struct {
	Text          string       `json:"text" validate:"required"`
	Type          QuestionType `json:"type" validate:"required,qtype"`
	OptionA       string       `json:"option_a"`
	OptionB       string       `json:"option_b"`
	OptionC       string       `json:"option_c"`
	OptionD       string       `json:"option_d"`
	CorrectAnswer string       `json:"correct_answer" validate:"required_unless=Type SHORT_ANSWER"`
	Marks         *int         `json:"marks" validate:"omitempty,gte=1"`
	Order         int          `json:"question_order" validate:"gte=0"`
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Text = core.CleanString(nq.Text)
	nq.Type = QuestionType(core.CleanString(string(nq.Type)))
	if err := validate.Struct(nq); err != nil {
		return err
	}
	if nq.Type == TypeMCQ && (nq.OptionA == "" || nq.OptionB == "") {
		return core.NewValidationError(ErrMissingOptions, core.FieldError{Field: "option_a", Error: ErrMissingOptions.Error()})
	}
	return nil
}

type AnswerInput struct {
	QuestionID int64  `json:"question_id" validate:"required"`
	Answer     string `json:"answer"`
}

type SubmitAttempt struct {
	Answers []AnswerInput `json:"answers" validate:"dive"`
}

type GradeShortAnswer struct {
	AnswerID int64 `json:"answer_id" validate:"required"`
	Marks    int   `json:"marks"`
}

// Filter selects quizzes. Zero fields are ignored.
type Filter struct {
	CourseIDs    []int64
	ActiveOnly   bool
	StartsAfter  time.Time
	StartsBefore time.Time
	NotReminded  bool
}

// AttemptFilter selects attempts. Zero fields are ignored.
type AttemptFilter struct {
	QuizID    int64
	StudentID int64
	CourseID  int64
	Status    AttemptStatus
}
