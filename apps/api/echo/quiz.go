package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edunex/core/quiz"
)

const (
	contextQuizKey    = "quiz"
	contextAttemptKey = "attempt"

	defaultLeaderboardSize = 10
)

type quizApi struct {
	*Server
	svc *quiz.Service
}

func registerQuizAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := quizApi{Server: s, svc: s.deps.QuizSvc}

	qg := g.Group("/quizzes", jwt)
	qg.GET("", api.query)

	dg := qg.Group("/:id", api.ctxQuizMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, api.managerOnly)
	dg.DELETE("", api.destroy, api.managerOnly)
	dg.GET("/questions", api.questions)
	dg.POST("/questions", api.addQuestion, api.managerOnly)
	dg.POST("/attempts", api.start, s.requireRoles(studentOnly...))
	dg.GET("/attempts", api.attempts)
	dg.GET("/results", api.results, api.managerOnly)
	dg.GET("/leaderboard", api.leaderboard)

	ag := g.Group("/attempts/:id", jwt, api.ctxAttemptMiddleware)
	ag.GET("", api.retrieveAttempt)
	ag.POST("/submit", api.submit, s.requireRoles(studentOnly...))
	ag.POST("/grade", api.grade, s.requireRoles(staffOnly...), api.attemptManagerOnly)
	ag.POST("/grade-answer", api.gradeAnswer, s.requireRoles(staffOnly...), api.attemptManagerOnly)
}

// query lists the quizzes of an instructor's courses, or the active quizzes of a student's courses.
func (api *quizApi) query(ctx echo.Context) error {
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}

	var quizzes []quiz.Quiz
	if ctxUsr.IsInstructor() {
		quizzes, err = api.svc.ListInstructorQuizzes(ctx.Request().Context(), ctxUsr.ID)
	} else {
		quizzes, err = api.svc.ListAvailableQuizzesForUser(ctx.Request().Context(), ctxUsr.ID)
	}
	if err != nil {
		return errors.Wrap(err, "listing quizzes")
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ctx.Get(contextQuizKey))
}

func (api *quizApi) update(ctx echo.Context) error {
	var data quiz.UpdateQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuiz")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	q, err := api.svc.UpdateQuiz(ctx.Request().Context(), ctx.Get(contextQuizKey).(quiz.Quiz), data)
	if err != nil {
		return errors.Wrap(err, "updating quiz")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quizApi) destroy(ctx echo.Context) error {
	c := ctx.Request().Context()
	q := ctx.Get(contextQuizKey).(quiz.Quiz)
	if err := api.svc.DeleteQuiz(c, q.ID); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	if api.deps.Leaderboard != nil {
		if err := api.deps.Leaderboard.Reset(c, q.ID); err != nil {
			api.deps.Logger.Warn("resetting leaderboard", err)
		}
	}
	return ctx.NoContent(http.StatusNoContent)
}

// questions hides the correct answers from those who cannot manage the quiz.
func (api *quizApi) questions(ctx echo.Context) error {
	q := ctx.Get(contextQuizKey).(quiz.Quiz)
	hide := checkCourseManager(ctx, api.Server, q.CourseID) != nil

	questions, err := api.svc.GetQuestions(ctx.Request().Context(), q.ID, hide)
	if err != nil {
		return errors.Wrap(err, "listing questions")
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *quizApi) addQuestion(ctx echo.Context) error {
	var data quiz.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	question, err := api.svc.AddQuestion(ctx.Request().Context(), data, ctx.Get(contextQuizKey).(quiz.Quiz).ID)
	if err != nil {
		return errors.Wrap(err, "adding question")
	}
	return ctx.JSON(http.StatusCreated, question)
}

func (api *quizApi) start(ctx echo.Context) error {
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.StartAttempt(ctx.Request().Context(), ctx.Get(contextQuizKey).(quiz.Quiz).ID, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "starting attempt")
	}
	return ctx.JSON(http.StatusCreated, a)
}

// attempts lists the attempts of `?user_id=`. Students only see their own.
func (api *quizApi) attempts(ctx echo.Context) error {
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	userID, err := queryID(ctx, "user_id")
	if err != nil {
		return err
	}
	if ctxUsr.IsStudent() || userID == 0 {
		userID = ctxUsr.ID
	}

	attempts, err := api.svc.ListUserAttempts(ctx.Request().Context(), ctx.Get(contextQuizKey).(quiz.Quiz).ID, userID)
	if err != nil {
		return errors.Wrap(err, "listing attempts")
	}
	if attempts == nil {
		attempts = []quiz.Attempt{}
	}
	return ctx.JSON(http.StatusOK, attempts)
}

func (api *quizApi) results(ctx echo.Context) error {
	attempts, err := api.svc.ListResults(ctx.Request().Context(), ctx.Get(contextQuizKey).(quiz.Quiz).ID)
	if err != nil {
		return errors.Wrap(err, "listing results")
	}
	return ctx.JSON(http.StatusOK, attempts)
}

func (api *quizApi) leaderboard(ctx echo.Context) error {
	n := queryInt(ctx, "limit", defaultLeaderboardSize)
	standings, err := api.svc.Leaderboard(ctx.Request().Context(), ctx.Get(contextQuizKey).(quiz.Quiz).ID, n)
	if err != nil {
		return errors.Wrap(err, "computing leaderboard")
	}
	return ctx.JSON(http.StatusOK, standings)
}

func (api *quizApi) retrieveAttempt(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ctx.Get(contextAttemptKey))
}

func (api *quizApi) submit(ctx echo.Context) error {
	var data quiz.SubmitAttempt
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitAttempt")
	}
	if err := api.deps.Validate.Struct(data); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	detail := ctx.Get(contextAttemptKey).(quiz.AttemptDetail)
	if detail.StudentID != ctxUsr.ID {
		return errHttpForbidden
	}

	a, err := api.svc.SubmitAttempt(ctx.Request().Context(), detail.ID, data)
	if err != nil {
		return errors.Wrap(err, "submitting attempt")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *quizApi) grade(ctx echo.Context) error {
	detail := ctx.Get(contextAttemptKey).(quiz.AttemptDetail)
	a, err := api.svc.GradeAttempt(ctx.Request().Context(), detail.ID)
	if err != nil {
		return errors.Wrap(err, "grading attempt")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *quizApi) gradeAnswer(ctx echo.Context) error {
	var data quiz.GradeShortAnswer
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeShortAnswer")
	}
	if err := api.deps.Validate.Struct(data); err != nil {
		return err
	}

	detail := ctx.Get(contextAttemptKey).(quiz.AttemptDetail)
	a, err := api.svc.GradeShortAnswer(ctx.Request().Context(), detail.ID, data)
	if err != nil {
		return errors.Wrap(err, "grading short answer")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *quizApi) ctxQuizMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := paramID(ctx, "id")
		if err != nil {
			return errHttpNotFound
		}
		q, err := api.svc.GetQuiz(ctx.Request().Context(), id)
		if err != nil {
			return errors.Wrap(err, "finding quiz by ID")
		}
		ctx.Set(contextQuizKey, q)
		return next(ctx)
	}
}

// ctxAttemptMiddleware loads the attempt of the path when the requester is its student or staff.
func (api *quizApi) ctxAttemptMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := paramID(ctx, "id")
		if err != nil {
			return errHttpNotFound
		}
		detail, err := api.svc.GetAttempt(ctx.Request().Context(), id)
		if err != nil {
			return errors.Wrap(err, "finding attempt by ID")
		}
		ctxUsr, err := api.auth.contextUser(ctx)
		if err != nil {
			return err
		}
		if ctxUsr.IsStudent() && detail.StudentID != ctxUsr.ID {
			return errHttpNotFound
		}
		ctx.Set(contextAttemptKey, detail)
		return next(ctx)
	}
}

func (api *quizApi) managerOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		q := ctx.Get(contextQuizKey).(quiz.Quiz)
		if err := checkCourseManager(ctx, api.Server, q.CourseID); err != nil {
			return err
		}
		return next(ctx)
	}
}

func (api *quizApi) attemptManagerOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		detail := ctx.Get(contextAttemptKey).(quiz.AttemptDetail)
		q, err := api.svc.GetQuiz(ctx.Request().Context(), detail.QuizID)
		if err != nil {
			return errors.Wrap(err, "finding quiz by ID")
		}
		if err = checkCourseManager(ctx, api.Server, q.CourseID); err != nil {
			return err
		}
		return next(ctx)
	}
}
