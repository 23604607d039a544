package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/assignment"
	"github.com/trezcool/edunex/core/attendance"
	"github.com/trezcool/edunex/core/course"
	"github.com/trezcool/edunex/core/material"
	"github.com/trezcool/edunex/core/quiz"
)

const contextCourseKey = "course"

type courseApi struct {
	*Server
	svc *course.Service
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := courseApi{Server: s, svc: s.deps.CourseSvc}

	cg := g.Group("/courses", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create, s.requireRoles(staffOnly...))
	cg.GET("/mine", api.mine, s.requireRoles(staffOnly...))

	dg := cg.Group("/:id", api.ctxCourseMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, api.managerOnly)
	dg.DELETE("", api.destroy, api.managerOnly)
	dg.GET("/enrollments", api.enrollments, api.managerOnly)
	dg.GET("/quizzes", api.quizzes)
	dg.POST("/quizzes", api.createQuiz, api.managerOnly)
	dg.GET("/assignments", api.assignments)
	dg.POST("/assignments", api.createAssignment, api.managerOnly)
	dg.GET("/materials", api.materials)
	dg.POST("/materials", api.createMaterial, s.requireRoles(staffOnly...), api.managerOnly)
	dg.GET("/submissions/pending", api.pendingSubmissions, api.managerOnly)
	dg.GET("/attendance", api.attendance, api.managerOnly)
	dg.GET("/attendance/rate", api.attendanceRate)
}

func (api *courseApi) query(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	// instructors create their own courses, admins pick the instructor
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	if ctxUsr.IsInstructor() || data.InstructorID == 0 {
		data.InstructorID = ctxUsr.ID
	}

	crs, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	api.deps.NotificationSvc.LogActivity(ctx.Request().Context(), "COURSE_CREATED", "course "+crs.Code+" created", ctxUsr.ID, "course", crs.ID)
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) mine(ctx echo.Context) error {
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	courses, err := api.svc.ListByInstructor(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "listing instructor courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ctxCourse(ctx))
}

func (api *courseApi) update(ctx echo.Context) error {
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}

	crs, err := api.svc.Update(ctx.Request().Context(), ctxCourse(ctx), data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), ctxCourse(ctx), ctxUsr); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) enrollments(ctx echo.Context) error {
	enrs, err := api.deps.EnrollmentSvc.ListByCourse(ctx.Request().Context(), ctxCourse(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "listing course enrollments")
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *courseApi) quizzes(ctx echo.Context) error {
	quizzes, err := api.deps.QuizSvc.ListAvailableQuizzes(ctx.Request().Context(), ctxCourse(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "listing course quizzes")
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *courseApi) createQuiz(ctx echo.Context) error {
	var data quiz.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	q, err := api.deps.QuizSvc.CreateQuiz(ctx.Request().Context(), data, ctxCourse(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *courseApi) assignments(ctx echo.Context) error {
	list, err := api.deps.AssignmentSvc.ListByCourse(ctx.Request().Context(), ctxCourse(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "listing course assignments")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *courseApi) createAssignment(ctx echo.Context) error {
	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	a, err := api.deps.AssignmentSvc.Create(ctx.Request().Context(), data, ctxCourse(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *courseApi) materials(ctx echo.Context) error {
	list, err := api.deps.MaterialSvc.ListByCourse(ctx.Request().Context(), ctxCourse(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "listing course materials")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *courseApi) createMaterial(ctx echo.Context) error {
	var data material.NewMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMaterial")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}

	m, err := api.deps.MaterialSvc.Create(ctx.Request().Context(), data, ctxCourse(ctx).ID, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "creating material")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *courseApi) pendingSubmissions(ctx echo.Context) error {
	subs, err := api.deps.AssignmentSvc.ListPending(ctx.Request().Context(), ctxCourse(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "listing pending submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

// attendance lists the course records, narrowed by `?date=YYYY-MM-DD` or `?student_id=`.
func (api *courseApi) attendance(ctx echo.Context) error {
	c := ctx.Request().Context()
	crs := ctxCourse(ctx)

	studentID, err := queryID(ctx, "student_id")
	if err != nil {
		return err
	}

	var records []attendance.Attendance
	switch date := ctx.QueryParam("date"); {
	case date != "":
		day, pErr := time.Parse(attendance.DateLayout, date)
		if pErr != nil {
			return attendance.ErrInvalidDate
		}
		records, err = api.deps.AttendanceSvc.ListByCourseAndDate(c, crs.ID, day)
	case studentID != 0:
		records, err = api.deps.AttendanceSvc.ListByStudentAndCourse(c, studentID, crs.ID)
	default:
		records, err = api.deps.AttendanceSvc.ListByCourse(c, crs.ID)
	}
	if err != nil {
		return errors.Wrap(err, "listing course attendance")
	}
	return ctx.JSON(http.StatusOK, records)
}

// attendanceRate returns the rate of `?student_id=`. Students only see their own.
func (api *courseApi) attendanceRate(ctx echo.Context) error {
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	studentID, err := queryID(ctx, "student_id")
	if err != nil {
		return err
	}
	if ctxUsr.IsStudent() {
		studentID = ctxUsr.ID
	} else if err = course.CheckManager(ctxCourse(ctx), ctxUsr); err != nil {
		return err
	}
	if studentID == 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: "student_id is required"})
	}

	rate, err := api.deps.AttendanceSvc.Rate(ctx.Request().Context(), studentID, ctxCourse(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "computing attendance rate")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"student_id": studentID, "course_id": ctxCourse(ctx).ID, "rate": rate})
}

// ctxCourseMiddleware loads the course of the path into the context.
func (api *courseApi) ctxCourseMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := paramID(ctx, "id")
		if err != nil {
			return errHttpNotFound
		}
		crs, err := api.svc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			return errors.Wrap(err, "finding course by ID")
		}
		ctx.Set(contextCourseKey, crs)
		return next(ctx)
	}
}

// managerOnly lets through admins and the instructor of the context course.
func (api *courseApi) managerOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctxUsr, err := api.auth.contextUser(ctx)
		if err != nil {
			return err
		}
		if course.CheckManager(ctxCourse(ctx), ctxUsr) != nil {
			return errHttpForbidden
		}
		return next(ctx)
	}
}

func ctxCourse(ctx echo.Context) course.Course {
	crs, _ := ctx.Get(contextCourseKey).(course.Course)
	return crs
}
