package echoapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/user"
)

const (
	contextObjectKey     = "object"
	errNoPermsToSetRoles = "not enough rights to set this role"
	maxCSVSize           = 2 << 20
)

var errObjNotFoundInCtx = errors.New("object not found in echo.Context")

type userApi struct {
	*Server
	svc *user.Service
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := userApi{Server: s, svc: s.deps.UserSvc}

	ug := g.Group("/users")

	// un-authed endpoints
	// TODO: rate limit `/login`, `/password-reset` & `/password-reset-confirm`
	ug.POST("/login", api.login)
	ug.POST("/password-reset", api.resetPassword)
	ug.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/roles", api.queryRoles)
	ag.POST("/register", api.create, s.requireRoles(adminOnly...))
	ag.POST("/bulk", api.bulkCreate, s.requireRoles(adminOnly...))
	ag.POST("/import", api.importCSV, s.requireRoles(adminOnly...))
	ag.GET("", api.query, s.requireRoles(adminOnly...))

	// detail endpoints
	dg := ag.Group("/:id", api.ctxUserOrAdminMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, s.requireRoles(adminOnly...))
	dg.POST("/activate", api.setActive(true), s.requireRoles(adminOnly...))
	dg.POST("/deactivate", api.setActive(false), s.requireRoles(adminOnly...))
	dg.GET("/quizzes", api.quizzes)
	dg.GET("/enrollments", api.enrollments)
	dg.GET("/submissions", api.submissions)
	dg.GET("/attendance", api.attendance)
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	claims, err := api.auth.authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(api.deps.Conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		api.deps.Logger.Error("requesting password reset", err)
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.deps.Validate, api.svc); err != nil {
		return err
	}

	// ctxUser cannot set a role > their own
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	if data.Role.Priority() > ctxUsr.Role.Priority() {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errNoPermsToSetRoles})
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) bulkCreate(ctx echo.Context) error {
	var data user.BulkCreate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkCreate")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	res, err := api.svc.BulkCreate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating users")
	}
	return ctx.JSON(http.StatusOK, res)
}

// importCSV reads the CSV from the "file" form field, or from the raw body.
func (api *userApi) importCSV(ctx echo.Context) error {
	var src io.Reader
	if strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := ctx.FormFile("file")
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "a CSV file is required"})
		}
		f, err := fh.Open()
		if err != nil {
			return errors.Wrap(err, "opening uploaded file")
		}
		defer f.Close()
		src = f
	} else {
		src = ctx.Request().Body
	}

	res, err := api.svc.ImportCSV(ctx.Request().Context(), io.LimitReader(src, maxCSVSize))
	if err != nil {
		return errors.Wrap(err, "importing users")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}

	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	if !ctxUsr.IsAdmin() {
		// `IsActive` and `Role` can only be changed by admin
		if data.IsActive != nil || data.Role != "" {
			return errHttpForbidden
		}
	}

	if err = data.Validate(usr, api.deps.Validate, api.svc); err != nil {
		return err
	}
	if data.Role.Priority() > ctxUsr.Role.Priority() {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errNoPermsToSetRoles})
	}

	usr, err = api.svc.Update(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}

	// ctxUser cannot delete themselves
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	if err = api.svc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) setActive(active bool) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, ok := ctx.Get(contextObjectKey).(user.User)
		if !ok {
			return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
		}
		ctxUsr, err := api.auth.contextUser(ctx)
		if err != nil {
			return err
		}
		if usr.ID == ctxUsr.ID {
			return errHttpForbidden
		}

		usr, err = api.svc.SetActive(ctx.Request().Context(), usr.ID, active)
		if err != nil {
			return errors.Wrap(err, "setting user active")
		}
		return ctx.JSON(http.StatusOK, usr)
	}
}

func (api *userApi) quizzes(ctx echo.Context) error {
	usr := ctx.Get(contextObjectKey).(user.User)
	quizzes, err := api.deps.QuizSvc.ListAvailableQuizzesForUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing available quizzes")
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *userApi) enrollments(ctx echo.Context) error {
	usr := ctx.Get(contextObjectKey).(user.User)
	enrs, err := api.deps.EnrollmentSvc.ListByStudent(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing enrollments")
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *userApi) submissions(ctx echo.Context) error {
	usr := ctx.Get(contextObjectKey).(user.User)
	subs, err := api.deps.AssignmentSvc.ListStudentSubmissions(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *userApi) attendance(ctx echo.Context) error {
	usr := ctx.Get(contextObjectKey).(user.User)
	records, err := api.deps.AttendanceSvc.ListByStudent(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing attendance")
	}
	return ctx.JSON(http.StatusOK, records)
}

// ctxUserOrAdminMiddleware puts the user of the path in the context when the requester is that user,
// an instructor or an admin. Others get a 404.
func (api *userApi) ctxUserOrAdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctxUsr, err := api.auth.contextUser(ctx)
		if err != nil {
			return err
		}
		id, err := paramID(ctx, "id")
		if err != nil {
			return errHttpNotFound
		}

		if id == ctxUsr.ID || ctxUsr.IsAdmin() || (ctxUsr.IsInstructor() && ctx.Request().Method == http.MethodGet) {
			if usr, err := api.svc.GetByID(ctx.Request().Context(), id); err == nil {
				ctx.Set(contextObjectKey, usr)
				return next(ctx)
			} else if errors.Cause(err) != user.ErrNotFound {
				return errors.Wrap(err, "finding user by ID")
			}
		}
		return errHttpNotFound
	}
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
