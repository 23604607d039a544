package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edunex/core/notification"
)

type notificationApi struct {
	*Server
	svc *notification.Service
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := notificationApi{Server: s, svc: s.deps.NotificationSvc}

	ng := g.Group("/notifications")
	// browsers cannot set headers on websocket handshakes
	if s.deps.Hub != nil {
		ng.GET("/ws", api.websocket, s.auth.middleware("query:token"))
	}

	ag := ng.Group("", jwt)
	ag.GET("", api.query)
	ag.POST("", api.create, s.requireRoles(staffOnly...))
	ag.POST("/read-all", api.markAllRead)
	ag.POST("/:id/read", api.markRead)
	ag.DELETE("/:id", api.destroy)

	g.GET("/activities", api.activities, jwt, s.requireRoles(adminOnly...))
}

// query lists the notifications of the requester, `?unread=true` for the unread only.
func (api *notificationApi) query(ctx echo.Context) error {
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	unread := ctx.QueryParam("unread") == "true"

	list, err := api.svc.List(ctx.Request().Context(), ctxUsr.ID, unread)
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	if list == nil {
		list = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *notificationApi) create(ctx echo.Context) error {
	var data notification.NewNotification
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotification")
	}
	if err := api.deps.Validate.Struct(data); err != nil {
		return err
	}

	n, err := api.svc.Notify(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "sending notification")
	}
	return ctx.JSON(http.StatusCreated, n)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return errHttpNotFound
	}
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}

	n, err := api.svc.MarkRead(ctx.Request().Context(), id, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	count, err := api.svc.MarkAllRead(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: count})
}

func (api *notificationApi) destroy(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return errHttpNotFound
	}
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), id, ctxUsr.ID); err != nil {
		return errors.Wrap(err, "deleting notification")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *notificationApi) websocket(ctx echo.Context) error {
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.deps.Hub.ServeWS(ctx.Response(), ctx.Request(), ctxUsr.ID); err != nil {
		// the upgrader already answered the client
		api.deps.Logger.Warn("opening notification socket", err, ctxUsr)
	}
	return nil
}

// activities lists the activity log: `?type=` or `?user_id=` narrow it, otherwise the most recent.
func (api *notificationApi) activities(ctx echo.Context) error {
	c := ctx.Request().Context()
	userID, err := queryID(ctx, "user_id")
	if err != nil {
		return err
	}

	var list []notification.Activity
	switch typ := ctx.QueryParam("type"); {
	case typ != "":
		list, err = api.svc.ActivitiesByType(c, typ)
	case userID != 0:
		list, err = api.svc.ActivitiesByUser(c, userID)
	default:
		list, err = api.svc.RecentActivities(c)
	}
	if err != nil {
		return errors.Wrap(err, "listing activities")
	}
	if list == nil {
		list = []notification.Activity{}
	}
	return ctx.JSON(http.StatusOK, list)
}
