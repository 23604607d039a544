package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edunex/core/attendance"
)

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	ag := g.Group("/attendance", jwt)
	ag.POST("", s.markAttendance, s.requireRoles(staffOnly...))
}

func (s *Server) markAttendance(ctx echo.Context) error {
	var data attendance.Mark
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Mark")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}
	if err := checkCourseManager(ctx, s, data.CourseID); err != nil {
		return err
	}

	ctxUsr, err := s.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	rec, err := s.deps.AttendanceSvc.Mark(ctx.Request().Context(), data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusCreated, rec)
}
