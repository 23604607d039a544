package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edunex/core/assignment"
)

const (
	contextAssignmentKey = "assignment"
	contextSubmissionKey = "submission"
)

type assignmentApi struct {
	*Server
	svc *assignment.Service
}

func registerAssignmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := assignmentApi{Server: s, svc: s.deps.AssignmentSvc}

	ag := g.Group("/assignments", jwt)
	ag.GET("", api.query)

	dg := ag.Group("/:id", api.ctxAssignmentMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, api.managerOnly)
	dg.DELETE("", api.destroy, api.managerOnly)
	dg.POST("/submissions", api.submit, s.requireRoles(studentOnly...))
	dg.GET("/submissions", api.submissions, api.managerOnly)

	sg := g.Group("/submissions/:id", jwt, api.ctxSubmissionMiddleware)
	sg.GET("", api.retrieveSubmission)
	sg.PUT("/grade", api.grade, s.requireRoles(staffOnly...))
}

// query lists what the requester can see: everything for admins, their courses' for instructors,
// their enrolled courses' for students.
func (api *assignmentApi) query(ctx echo.Context) error {
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	list, err := api.svc.ListForUser(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	if list == nil {
		list = []assignment.Assignment{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ctx.Get(contextAssignmentKey))
}

func (api *assignmentApi) update(ctx echo.Context) error {
	var data assignment.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	a, err := api.svc.Update(ctx.Request().Context(), ctx.Get(contextAssignmentKey).(assignment.Assignment), data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	a := ctx.Get(contextAssignmentKey).(assignment.Assignment)
	if err := api.svc.Delete(ctx.Request().Context(), a.ID); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assignmentApi) submit(ctx echo.Context) error {
	var data assignment.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}

	a := ctx.Get(contextAssignmentKey).(assignment.Assignment)
	sub, err := api.svc.Submit(ctx.Request().Context(), a.ID, ctxUsr.ID, data)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *assignmentApi) submissions(ctx echo.Context) error {
	a := ctx.Get(contextAssignmentKey).(assignment.Assignment)
	subs, err := api.svc.ListSubmissions(ctx.Request().Context(), a.ID)
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assignmentApi) retrieveSubmission(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ctx.Get(contextSubmissionKey))
}

func (api *assignmentApi) grade(ctx echo.Context) error {
	var data assignment.GradeSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeSubmission")
	}

	sub := ctx.Get(contextSubmissionKey).(assignment.Submission)
	a, err := api.svc.GetByID(ctx.Request().Context(), sub.AssignmentID)
	if err != nil {
		return errors.Wrap(err, "finding assignment by ID")
	}
	if err = checkCourseManager(ctx, api.Server, a.CourseID); err != nil {
		return err
	}

	sub, err = api.svc.Grade(ctx.Request().Context(), sub.ID, data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *assignmentApi) ctxAssignmentMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := paramID(ctx, "id")
		if err != nil {
			return errHttpNotFound
		}
		a, err := api.svc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			return errors.Wrap(err, "finding assignment by ID")
		}
		ctx.Set(contextAssignmentKey, a)
		return next(ctx)
	}
}

// ctxSubmissionMiddleware loads the submission of the path when the requester is its student or staff.
func (api *assignmentApi) ctxSubmissionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := paramID(ctx, "id")
		if err != nil {
			return errHttpNotFound
		}
		sub, err := api.svc.GetSubmission(ctx.Request().Context(), id)
		if err != nil {
			return errors.Wrap(err, "finding submission by ID")
		}
		ctxUsr, err := api.auth.contextUser(ctx)
		if err != nil {
			return err
		}
		if ctxUsr.IsStudent() && sub.StudentID != ctxUsr.ID {
			return errHttpNotFound
		}
		ctx.Set(contextSubmissionKey, sub)
		return next(ctx)
	}
}

func (api *assignmentApi) managerOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		a := ctx.Get(contextAssignmentKey).(assignment.Assignment)
		if err := checkCourseManager(ctx, api.Server, a.CourseID); err != nil {
			return err
		}
		return next(ctx)
	}
}
