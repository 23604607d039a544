package report

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/course"
	"github.com/trezcool/edunex/core/user"
)

const mimeTextCSV = "text/csv"

// Kind names a course report that can be rendered as CSV.
type Kind string

const (
	KindAttendance  Kind = "attendance"
	KindPerformance Kind = "performance"
)

var (
	ErrUnknownKind = core.NewError(core.KindInvalidInput, "unknown report kind")
	ErrNoMailbox   = core.NewError(core.KindInvalidInput, "recipient has no email address")
)

func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindAttendance, KindPerformance:
		return k, true
	}
	return "", false
}

// WriteCSV renders the report of a course and returns it with its file name.
func (svc *Service) WriteCSV(ctx context.Context, kind Kind, courseID int64) (*bytes.Buffer, string, error) {
	var (
		buf bytes.Buffer
		crs course.Course
	)
	switch kind {
	case KindAttendance:
		rep, err := svc.CourseAttendance(ctx, courseID)
		if err != nil {
			return nil, "", err
		}
		crs = rep.Course
		if err = WriteAttendanceCSV(&buf, rep); err != nil {
			return nil, "", errors.Wrap(err, "writing attendance CSV")
		}
	case KindPerformance:
		rep, err := svc.CoursePerformance(ctx, courseID)
		if err != nil {
			return nil, "", err
		}
		crs = rep.Course
		if err = WritePerformanceCSV(&buf, rep); err != nil {
			return nil, "", errors.Wrap(err, "writing performance CSV")
		}
	default:
		return nil, "", ErrUnknownKind
	}
	return &buf, fmt.Sprintf("%s_%s.csv", kind, crs.Code), nil
}

// MailCSV emails the CSV report of a course to the given user, as an attachment.
func (svc *Service) MailCSV(ctx context.Context, kind Kind, courseID int64, to user.User) error {
	if to.Email == "" {
		return ErrNoMailbox
	}
	crs, err := svc.courses.GetByID(ctx, courseID)
	if err != nil {
		return err
	}
	buf, filename, err := svc.WriteCSV(ctx, kind, courseID)
	if err != nil {
		return err
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: to.Name, Address: to.Email}},
		Subject:      fmt.Sprintf("%s %s report", crs.Code, kind),
		TemplateName: "course_report",
		TemplateData: map[string]interface{}{
			"Name":       to.Name,
			"Kind":       string(kind),
			"CourseCode": crs.Code,
			"CourseName": crs.Name,
			"Filename":   filename,
		},
	}
	if err = msg.Attach(buf, filename, mimeTextCSV); err != nil {
		return errors.Wrap(err, "attaching report")
	}
	svc.mailSvc.SendMessages(msg)
	return nil
}
