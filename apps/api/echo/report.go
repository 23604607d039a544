package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edunex/core/report"
)

const mimeTextCSV = "text/csv; charset=utf-8"

type reportApi struct {
	*Server
	svc *report.Service
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := reportApi{Server: s, svc: s.deps.ReportSvc}

	rg := g.Group("/reports", jwt)
	rg.GET("/students/:sid/courses/:cid/grades", api.studentGrades)
	rg.GET("/courses/:id/attendance", api.courseAttendance, s.requireRoles(staffOnly...), api.managerOnly)
	rg.GET("/courses/:id/performance", api.coursePerformance, s.requireRoles(staffOnly...), api.managerOnly)
	rg.POST("/courses/:id/email", api.mailCourseReport, s.requireRoles(staffOnly...), api.managerOnly)
	rg.GET("/dashboard", api.dashboard, s.requireRoles(adminOnly...))
}

// studentGrades is open to the student themselves and to the course staff.
func (api *reportApi) studentGrades(ctx echo.Context) error {
	studentID, err := paramID(ctx, "sid")
	if err != nil {
		return errHttpNotFound
	}
	courseID, err := paramID(ctx, "cid")
	if err != nil {
		return errHttpNotFound
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	if ctxUsr.ID != studentID {
		if ctxUsr.IsStudent() {
			return errHttpForbidden
		}
		if err = checkCourseManager(ctx, api.Server, courseID); err != nil {
			return err
		}
	}

	rep, err := api.svc.StudentGrades(ctx.Request().Context(), studentID, courseID)
	if err != nil {
		return errors.Wrap(err, "building grade report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

// courseAttendance answers JSON, or CSV with `?format=csv`.
func (api *reportApi) courseAttendance(ctx echo.Context) error {
	id, _ := paramID(ctx, "id")
	if wantsCSV(ctx) {
		return api.sendCSV(ctx, report.KindAttendance, id)
	}
	rep, err := api.svc.CourseAttendance(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "building attendance report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

// coursePerformance answers JSON, or CSV with `?format=csv`.
func (api *reportApi) coursePerformance(ctx echo.Context) error {
	id, _ := paramID(ctx, "id")
	if wantsCSV(ctx) {
		return api.sendCSV(ctx, report.KindPerformance, id)
	}
	rep, err := api.svc.CoursePerformance(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "building performance report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

// mailCourseReport emails the CSV report of a course to the requester.
func (api *reportApi) mailCourseReport(ctx echo.Context) error {
	var data report.MailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MailRequest")
	}
	if err := api.deps.Validate.Struct(data); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	id, _ := paramID(ctx, "id")
	if err = api.svc.MailCSV(ctx.Request().Context(), data.Report, id, ctxUsr); err != nil {
		return errors.Wrap(err, "mailing course report")
	}
	return ctx.JSON(http.StatusAccepted, SuccessResponse{Success: fmt.Sprintf("The %s report was sent to %s.", data.Report, ctxUsr.Email)})
}

func (api *reportApi) dashboard(ctx echo.Context) error {
	stats, err := api.svc.Dashboard(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing dashboard")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *reportApi) managerOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := paramID(ctx, "id")
		if err != nil {
			return errHttpNotFound
		}
		if err = checkCourseManager(ctx, api.Server, id); err != nil {
			return err
		}
		return next(ctx)
	}
}

func wantsCSV(ctx echo.Context) bool { return ctx.QueryParam("format") == "csv" }

func (api *reportApi) sendCSV(ctx echo.Context, kind report.Kind, courseID int64) error {
	buf, filename, err := api.svc.WriteCSV(ctx.Request().Context(), kind, courseID)
	if err != nil {
		return errors.Wrapf(err, "writing %s CSV", kind)
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, mimeTextCSV, buf.Bytes())
}
