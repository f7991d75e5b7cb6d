package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorconnect/core/session"
	"github.com/trezcool/tutorconnect/core/user"
)

type sessionApi struct {
	usrSvc   *user.Service
	svc      *session.Service
	validate *validator.Validate
}

func registerSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc, api sessionApi) {
	sg := g.Group("/sessions", jwt)
	sg.POST("/book", api.book, roleMiddleware(errStudentsOnlyBook, user.RoleStudent))
	sg.GET("/my", api.listMine)

	// detail endpoints
	dg := sg.Group("/:id")
	dg.PATCH("/reschedule", api.reschedule)
	dg.PATCH("/complete", api.complete, roleMiddleware(errTutorsOnlyComplete, user.RoleTutor))
	dg.PATCH("/cancel", api.cancel)
}

// Handlers

func (api *sessionApi) book(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data session.NewBooking
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBooking")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.Book(ctx.Request().Context(), claims.ID, data)
	if err != nil {
		return errors.Wrap(err, "booking session")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{
		"message": "Session booked successfully",
		"session": sess,
	})
}

func (api *sessionApi) listMine(ctx echo.Context) error {
	actor, err := getContextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	sessions, err := api.svc.ListMine(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "listing sessions")
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *sessionApi) reschedule(ctx echo.Context) error {
	actor, err := getContextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, session.ErrNotFound)
	if err != nil {
		return err
	}

	var data session.Rescheduling
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Rescheduling")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.Reschedule(ctx.Request().Context(), actor, id, data)
	if err != nil {
		return errors.Wrap(err, "rescheduling session")
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"message": "Session rescheduled successfully.",
		"session": sess,
	})
}

func (api *sessionApi) complete(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, session.ErrNotFoundOrNotYours)
	if err != nil {
		return err
	}

	var data session.Completion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Completion")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if _, err = api.svc.Complete(ctx.Request().Context(), claims.ID, id, data); err != nil {
		return errors.Wrap(err, "completing session")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: "Session marked as completed."})
}

func (api *sessionApi) cancel(ctx echo.Context) error {
	actor, err := getContextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, session.ErrNotFound)
	if err != nil {
		return err
	}
	if _, err = api.svc.Cancel(ctx.Request().Context(), actor, id); err != nil {
		return errors.Wrap(err, "cancelling session")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: "Session cancelled successfully."})
}
