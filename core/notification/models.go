package notification

import "time"

type Type string

const (
	TypeCourseUpdate Type = "COURSE_UPDATE"
	TypeAssignment   Type = "ASSIGNMENT"
	TypeQuiz         Type = "QUIZ"
	TypeGrade        Type = "GRADE"
	TypeAttendance   Type = "ATTENDANCE"
	TypeAnnouncement Type = "ANNOUNCEMENT"
	TypeSystem       Type = "SYSTEM"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeCourseUpdate, TypeAssignment, TypeQuiz, TypeGrade, TypeAttendance, TypeAnnouncement, TypeSystem:
		return true
	}
	return false
}

type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      Type      `json:"type"`
	IsRead    bool      `json:"is_read"`
	LinkURL   string    `json:"link_url,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NewNotification is what a notification is created from.
// Email also sends it by mail to the recipient.
type NewNotification struct {
	UserID  int64  `json:"user_id" validate:"required"`
	Title   string `json:"title" validate:"required,max=200"`
	Message string `json:"message" validate:"required"`
	Type    Type   `json:"type" validate:"required,oneof=COURSE_UPDATE ASSIGNMENT QUIZ GRADE ATTENDANCE ANNOUNCEMENT SYSTEM"`
	LinkURL string `json:"link_url"`
	Email   bool   `json:"email"`
}

type Activity struct {
	ID          int64     `json:"id"`
	Type        string    `json:"activity_type"`
	Description string    `json:"description"`
	UserID      *int64    `json:"user_id"`
	EntityType  string    `json:"entity_type,omitempty"`
	EntityID    *int64    `json:"entity_id"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// ActivityFilter selects activities, most recent first. Zero fields are ignored.
type ActivityFilter struct {
	Type   string
	UserID int64
	Limit  int
}
