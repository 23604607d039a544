package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edunex/core"
)

type Course struct {
	ID           int64     `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	Credits      int       `json:"credits"`
	MaxStudents  int       `json:"max_students"`
	IsActive     bool      `json:"is_active"`
	InstructorID int64     `json:"instructor_id"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// IsOwnedBy reports whether userID is the course instructor.
func (c Course) IsOwnedBy(userID int64) bool { return c.InstructorID == userID }

type NewCourse struct {
	Code         string `json:"code" validate:"required,max=20"`
	Name         string `json:"name" validate:"required,max=200"`
	Description  string `json:"description"`
	Category     string `json:"category" validate:"max=100"`
	Credits      *int   `json:"credits" validate:"omitempty,gte=0,lte=30"`
	MaxStudents  *int   `json:"max_students" validate:"omitempty,gte=1"`
	InstructorID int64  `json:"instructor_id"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Code = core.CleanString(nc.Code)
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	nc.Category = core.CleanString(nc.Category)
	return validate.Struct(nc)
}

type UpdateCourse struct {
	Name        string `json:"name" validate:"max=200"`
	Description string `json:"description"`
	Category    string `json:"category" validate:"max=100"`
	Credits     *int   `json:"credits" validate:"omitempty,gte=0,lte=30"`
	MaxStudents *int   `json:"max_students" validate:"omitempty,gte=1"`
	IsActive    *bool  `json:"is_active"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanString(uc.Name)
	uc.Description = core.CleanString(uc.Description)
	uc.Category = core.CleanString(uc.Category)
	return validate.Struct(uc)
}

type QueryFilter struct {
	Search       string `query:"search"`
	Category     string `query:"category"`
	InstructorID int64  `query:"instructor_id"`
	IsActive     *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Category = core.CleanString(qf.Category)
}
