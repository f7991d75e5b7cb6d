package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorconnect/core"
	"github.com/trezcool/tutorconnect/core/user"
)

type authApi struct {
	svc      *user.Service
	validate *validator.Validate
	conf     *core.Config
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *user.Service, validate *validator.Validate, conf *core.Config) {
	api := authApi{svc: svc, validate: validate, conf: conf}

	ag := g.Group("/auth")
	ag.POST("/signup", api.signup)
	ag.POST("/login", api.login)

	g.GET("/dashboard", api.dashboard, jwt)
}

// Handlers

func (api *authApi) signup(ctx echo.Context) error {
	var data user.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if _, err := api.svc.Signup(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "signing up")
	}
	return ctx.JSON(http.StatusCreated, messageResponse{Message: "Student signup successful. You can now log in."})
}

func (api *authApi) login(ctx echo.Context) error {
	var data user.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(NewClaims(usr, api.conf), api.conf.SecretKey)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, loginResponse{
		Token: token,
		User: loggedInUser{
			ID:       usr.ID,
			FullName: usr.FullName,
			Email:    usr.Email,
			Role:     usr.Role,
		},
	})
}

func (api *authApi) dashboard(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Welcome %s! Your user ID is %d", claims.Role, claims.ID),
	})
}
