package material

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edunex/core"
)

type Type string

const (
	TypeDocument Type = "DOCUMENT"
	TypeVideo    Type = "VIDEO"
	TypeLink     Type = "LINK"
	TypeOther    Type = "OTHER"
)

type Material struct {
	ID          int64     `json:"id"`
	CourseID    int64     `json:"course_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Type        Type      `json:"type"`
	URL         string    `json:"url"`
	UploadedBy  *int64    `json:"uploaded_by"` // nil once the uploader is deleted
	UploadedAt  time.Time `json:"uploaded_at"` // UTC
}

// NewMaterial is the payload of both creations and (full) updates.
type NewMaterial struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description"`
	Type        Type   `json:"type" validate:"required,oneof=DOCUMENT VIDEO LINK OTHER"`
	URL         string `json:"url" validate:"required,url,max=1000"`
}

func (nm *NewMaterial) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)
	nm.Type = Type(core.CleanString(string(nm.Type)))
	nm.URL = core.CleanString(nm.URL)
	return validate.Struct(nm)
}

// Filter selects materials, most recent first. Zero fields are ignored.
type Filter struct {
	CourseID   int64
	UploadedBy int64
}
