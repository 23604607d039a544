package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edunex/core/material"
)

const contextMaterialKey = "material"

type materialApi struct {
	*Server
	svc *material.Service
}

func registerMaterialAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := materialApi{Server: s, svc: s.deps.MaterialSvc}

	mg := g.Group("/materials", jwt)
	mg.GET("", api.uploaded, s.requireRoles(staffOnly...))

	dg := mg.Group("/:id", api.ctxMaterialMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, s.requireRoles(staffOnly...), api.managerOnly)
	dg.DELETE("", api.destroy, s.requireRoles(staffOnly...), api.managerOnly)
}

// uploaded lists the materials uploaded by ?uploaded_by, the requester by default.
func (api *materialApi) uploaded(ctx echo.Context) error {
	uploaderID, err := queryID(ctx, "uploaded_by")
	if err != nil {
		return err
	}
	if uploaderID == 0 {
		ctxUsr, err := api.auth.contextUser(ctx)
		if err != nil {
			return err
		}
		uploaderID = ctxUsr.ID
	}

	list, err := api.svc.ListByUploader(ctx.Request().Context(), uploaderID)
	if err != nil {
		return errors.Wrap(err, "listing uploaded materials")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *materialApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ctx.Get(contextMaterialKey))
}

func (api *materialApi) update(ctx echo.Context) error {
	var data material.NewMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMaterial")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	m, err := api.svc.Update(ctx.Request().Context(), ctx.Get(contextMaterialKey).(material.Material), data)
	if err != nil {
		return errors.Wrap(err, "updating material")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *materialApi) destroy(ctx echo.Context) error {
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), ctx.Get(contextMaterialKey).(material.Material), ctxUsr); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *materialApi) ctxMaterialMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := paramID(ctx, "id")
		if err != nil {
			return errHttpNotFound
		}
		m, err := api.svc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			return errors.Wrap(err, "finding material by ID")
		}
		ctx.Set(contextMaterialKey, m)
		return next(ctx)
	}
}

func (api *materialApi) managerOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		m := ctx.Get(contextMaterialKey).(material.Material)
		if err := checkCourseManager(ctx, api.Server, m.CourseID); err != nil {
			return err
		}
		return next(ctx)
	}
}
