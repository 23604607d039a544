package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edunex/core/course"
	"github.com/trezcool/edunex/core/enrollment"
)

const contextEnrollmentKey = "enrollment"

type enrollmentApi struct {
	*Server
	svc *enrollment.Service
}

func registerEnrollmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := enrollmentApi{Server: s, svc: s.deps.EnrollmentSvc}

	eg := g.Group("/enrollments", jwt)
	eg.POST("", api.enroll)
	eg.POST("/bulk", api.bulkEnroll, s.requireRoles(staffOnly...))

	dg := eg.Group("/:id", api.ctxEnrollmentMiddleware)
	dg.GET("", api.retrieve)
	dg.POST("/drop", api.drop)
	dg.PUT("/progress", api.updateProgress)
	dg.PUT("/grade", api.setFinalGrade, s.requireRoles(staffOnly...))
}

// enroll enrolls the requesting student, or any student when done by staff.
func (api *enrollmentApi) enroll(ctx echo.Context) error {
	var data enrollment.Enroll
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Enroll")
	}
	if err := api.deps.Validate.Struct(data); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	if ctxUsr.IsStudent() || data.StudentID == 0 {
		data.StudentID = ctxUsr.ID
	}

	enr, err := api.svc.Enroll(ctx.Request().Context(), data.StudentID, data.CourseID)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	api.deps.NotificationSvc.LogActivity(ctx.Request().Context(), "ENROLLMENT", "student enrolled", enr.StudentID, "course", enr.CourseID)
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *enrollmentApi) bulkEnroll(ctx echo.Context) error {
	var data enrollment.BulkEnroll
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkEnroll")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}
	if err := checkCourseManager(ctx, api.Server, data.CourseID); err != nil {
		return err
	}

	res, err := api.svc.BulkEnroll(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "bulk enrolling students")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *enrollmentApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ctx.Get(contextEnrollmentKey))
}

func (api *enrollmentApi) drop(ctx echo.Context) error {
	enr := ctx.Get(contextEnrollmentKey).(enrollment.Enrollment)
	enr, err := api.svc.Drop(ctx.Request().Context(), enr.ID)
	if err != nil {
		return errors.Wrap(err, "dropping enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) updateProgress(ctx echo.Context) error {
	var data enrollment.UpdateProgress
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProgress")
	}
	if err := api.deps.Validate.Struct(data); err != nil {
		return err
	}

	enr := ctx.Get(contextEnrollmentKey).(enrollment.Enrollment)
	enr, err := api.svc.UpdateProgress(ctx.Request().Context(), enr.ID, data.Progress)
	if err != nil {
		return errors.Wrap(err, "updating progress")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) setFinalGrade(ctx echo.Context) error {
	var data enrollment.SetFinalGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetFinalGrade")
	}
	if err := api.deps.Validate.Struct(data); err != nil {
		return err
	}

	enr := ctx.Get(contextEnrollmentKey).(enrollment.Enrollment)
	enr, err := api.svc.SetFinalGrade(ctx.Request().Context(), enr.ID, data.Grade)
	if err != nil {
		return errors.Wrap(err, "setting final grade")
	}
	return ctx.JSON(http.StatusOK, enr)
}

// ctxEnrollmentMiddleware loads the enrollment of the path when the requester is its student,
// the course instructor or an admin. Others get a 404.
func (api *enrollmentApi) ctxEnrollmentMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := paramID(ctx, "id")
		if err != nil {
			return errHttpNotFound
		}
		enr, err := api.svc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			return errors.Wrap(err, "finding enrollment by ID")
		}

		ctxUsr, err := api.auth.contextUser(ctx)
		if err != nil {
			return err
		}
		if enr.StudentID != ctxUsr.ID {
			if err = checkCourseManager(ctx, api.Server, enr.CourseID); err != nil {
				return errHttpNotFound
			}
		}
		ctx.Set(contextEnrollmentKey, enr)
		return next(ctx)
	}
}

// checkCourseManager returns errHttpForbidden unless the requester manages courseID.
func checkCourseManager(ctx echo.Context, s *Server, courseID int64) error {
	ctxUsr, err := s.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	if ctxUsr.IsAdmin() {
		return nil
	}
	crs, err := s.deps.CourseSvc.GetByID(ctx.Request().Context(), courseID)
	if err != nil {
		return errors.Wrap(err, "finding course by ID")
	}
	if course.CheckManager(crs, ctxUsr) != nil {
		return errHttpForbidden
	}
	return nil
}
