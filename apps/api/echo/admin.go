package echoapi

import (
	"bytes"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorconnect/core/application"
	"github.com/trezcool/tutorconnect/core/report"
	"github.com/trezcool/tutorconnect/core/session"
	"github.com/trezcool/tutorconnect/core/user"
)

type adminApi struct {
	usrSvc    *user.Service
	appSvc    *application.Service
	sessSvc   *session.Service
	reportSvc *report.Service
	uploads   *uploadStore
	validate  *validator.Validate
}

func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, api adminApi) {
	ag := g.Group("/admin", jwt, roleMiddleware(errAdminOnly, user.RoleAdmin))

	ag.GET("/dashboard", api.dashboard)
	ag.POST("/users", api.createUser)
	ag.GET("/students", api.students)
	ag.GET("/tutors", api.tutors)
	ag.GET("/sessions", api.sessions)
	ag.GET("/export/:name", api.export)

	// tutor applications
	ag.GET("/tutor-applications", api.applications)
	ag.GET("/pending-tutors", api.pendingApplications)
	ag.PATCH("/tutor-applications/:id", api.decide)
	ag.PATCH("/approve-tutor/:id", api.decideWith(application.StatusApproved))
	ag.PATCH("/reject-tutor/:id", api.decideWith(application.StatusRejected))
}

// Handlers

func (api *adminApi) dashboard(ctx echo.Context) error {
	dash, err := api.reportSvc.Dashboard(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *adminApi) createUser(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := api.usrSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *adminApi) students(ctx echo.Context) error {
	students, err := api.reportSvc.Students(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *adminApi) tutors(ctx echo.Context) error {
	tutors, err := api.reportSvc.Tutors(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing tutors")
	}
	return ctx.JSON(http.StatusOK, api.uploads.tutorViews(ctx, tutors))
}

func (api *adminApi) sessions(ctx echo.Context) error {
	sessions, err := api.sessSvc.ListAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing sessions")
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *adminApi) export(ctx echo.Context) error {
	name := ctx.Param("name")

	var buf bytes.Buffer
	if err := api.reportSvc.Export(ctx.Request().Context(), name, &buf); err != nil {
		return errors.Wrap(err, "exporting "+name)
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+name+".csv")
	return ctx.Blob(http.StatusOK, "text/csv", buf.Bytes())
}

func (api *adminApi) applications(ctx echo.Context) error {
	apps, err := api.appSvc.List(ctx.Request().Context(), ctx.QueryParam("status"))
	if err != nil {
		return errors.Wrap(err, "listing applications")
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *adminApi) pendingApplications(ctx echo.Context) error {
	apps, err := api.appSvc.ListPending(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing pending applications")
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *adminApi) decide(ctx echo.Context) error {
	var data application.Decision
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Decision")
	}
	return api.applyDecision(ctx, data)
}

func (api *adminApi) decideWith(status string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return api.applyDecision(ctx, application.Decision{Status: status})
	}
}

func (api *adminApi) applyDecision(ctx echo.Context, data application.Decision) error {
	id, err := paramID(ctx, application.ErrNotFound)
	if err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	app, err := api.appSvc.Decide(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "deciding application")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: "Application " + app.Status + " successfully."})
}
