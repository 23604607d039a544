package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edunex/core"
)

const DateLayout = "2006-01-02"

type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusAbsent  Status = "ABSENT"
	StatusLate    Status = "LATE"
	StatusExcused Status = "EXCUSED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

type Attendance struct {
	ID        int64     `json:"id"`
	StudentID int64     `json:"student_id"`
	CourseID  int64     `json:"course_id"`
	Date      time.Time `json:"attendance_date"` // UTC midnight
	Status    Status    `json:"status"`
	Remarks   string    `json:"remarks,omitempty"`
	MarkedAt  time.Time `json:"marked_at"` // UTC
	MarkedBy  *int64    `json:"marked_by"`
}

// Mark is the payload of an attendance entry. Date defaults to today (UTC).
type Mark struct {
	StudentID int64  `json:"student_id" validate:"required"`
	CourseID  int64  `json:"course_id" validate:"required"`
	Date      string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Status    Status `json:"status" validate:"required"`
	Remarks   string `json:"remarks" validate:"max=500"`
}

func (m *Mark) Validate(validate *validator.Validate) error {
	m.Status = Status(core.CleanString(string(m.Status)))
	m.Remarks = core.CleanString(m.Remarks)
	m.Date = core.CleanString(m.Date)
	return validate.Struct(m)
}

// Filter selects attendance records. Zero fields are ignored.
type Filter struct {
	StudentID int64
	CourseID  int64
	Date      time.Time
}

// Day truncates t to its UTC date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
