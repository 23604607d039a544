package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edunex/core"
)

type SubmissionStatus string

const (
	StatusSubmitted SubmissionStatus = "SUBMITTED"
	StatusLate      SubmissionStatus = "LATE_SUBMISSION"
	StatusGraded    SubmissionStatus = "GRADED"
)

type Assignment struct {
	ID            int64     `json:"id"`
	CourseID      int64     `json:"course_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	DueDate       time.Time `json:"due_date"` // UTC
	MaxMarks      int       `json:"max_marks"`
	AttachmentURL string    `json:"attachment_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

type Submission struct {
	ID            int64            `json:"id"`
	AssignmentID  int64            `json:"assignment_id"`
	StudentID     int64            `json:"student_id"`
	SubmissionURL string           `json:"submission_url,omitempty"`
	Content       string           `json:"content,omitempty"`
	Status        SubmissionStatus `json:"status"`
	MarksObtained *int             `json:"marks_obtained"`
	Feedback      string           `json:"feedback,omitempty"`
	SubmittedAt   time.Time        `json:"submitted_at"` // UTC
	GradedAt      *time.Time       `json:"graded_at"`    // UTC
}

type NewAssignment struct {
	Title         string    `json:"title" validate:"required,max=200"`
	Description   string    `json:"description"`
	DueDate       time.Time `json:"due_date" validate:"required"`
	MaxMarks      *int      `json:"max_marks" validate:"omitempty,gte=1"`
	AttachmentURL string    `json:"attachment_url" validate:"omitempty,url"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.AttachmentURL = core.CleanString(na.AttachmentURL)
	return validate.Struct(na)
}

type UpdateAssignment struct {
	Title         string     `json:"title" validate:"max=200"`
	Description   string     `json:"description"`
	DueDate       *time.Time `json:"due_date"`
	MaxMarks      *int       `json:"max_marks" validate:"omitempty,gte=1"`
	AttachmentURL string     `json:"attachment_url" validate:"omitempty,url"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	ua.Title = core.CleanString(ua.Title)
	ua.Description = core.CleanString(ua.Description)
	ua.AttachmentURL = core.CleanString(ua.AttachmentURL)
	return validate.Struct(ua)
}

type NewSubmission struct {
	SubmissionURL string `json:"submission_url" validate:"omitempty,url"`
	Content       string `json:"content" validate:"required_without=SubmissionURL"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.SubmissionURL = core.CleanString(ns.SubmissionURL)
	ns.Content = core.CleanString(ns.Content)
	return validate.Struct(ns)
}

type GradeSubmission struct {
	Marks    int    `json:"marks"`
	Feedback string `json:"feedback"`
}

// SubmissionFilter selects submissions. Zero fields are ignored.
type SubmissionFilter struct {
	AssignmentID int64
	StudentID    int64
	CourseID     int64
	Statuses     []SubmissionStatus
}
