package enrollment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edunex/core"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusDropped   Status = "DROPPED"
	StatusSuspended Status = "SUSPENDED"
)

type Enrollment struct {
	ID          int64     `json:"id"`
	StudentID   int64     `json:"student_id"`
	CourseID    int64     `json:"course_id"`
	Status      Status    `json:"status"`
	Progress    float64   `json:"progress"`
	FinalGrade  *float64  `json:"final_grade"`
	EnrolledAt  time.Time `json:"enrolled_at"`  // UTC
	CompletedAt time.Time `json:"completed_at"` // UTC, zero until completed
}

// Enroll is the payload of an enrollment request. StudentID defaults to the requester.
type Enroll struct {
	StudentID int64 `json:"student_id"`
	CourseID  int64 `json:"course_id" validate:"required"`
}

type UpdateProgress struct {
	Progress float64 `json:"progress" validate:"gte=0,lte=100"`
}

type SetFinalGrade struct {
	Grade float64 `json:"grade" validate:"gte=0,lte=100"`
}

// BulkEnroll enrolls the students whose USN is in [prefix+%03d(Start), prefix+%03d(End)].
type BulkEnroll struct {
	CourseID int64  `json:"course_id" validate:"required"`
	Prefix   string `json:"prefix" validate:"required,max=16,alphanum_"`
	Start    int    `json:"start_range" validate:"gte=0"`
	End      int    `json:"end_range" validate:"gtefield=Start"`
}

func (be *BulkEnroll) Validate(validate *validator.Validate) error {
	be.Prefix = core.CleanString(be.Prefix)
	if err := validate.Struct(be); err != nil {
		return err
	}
	if be.End-be.Start >= maxBulkSize {
		return core.NewValidationError(ErrBulkTooLarge, core.FieldError{Field: "end_range", Error: ErrBulkTooLarge.Error()})
	}
	return nil
}

type BulkFailure struct {
	USN    string `json:"usn"`
	Reason string `json:"reason"`
}

type BulkResult struct {
	Enrolled        []string      `json:"enrolled"`
	AlreadyEnrolled []string      `json:"already_enrolled"`
	Failed          []BulkFailure `json:"failed"`
}
