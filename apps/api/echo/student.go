package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorconnect/core/session"
	"github.com/trezcool/tutorconnect/core/user"
)

type studentApi struct {
	usrSvc   *user.Service
	sessSvc  *session.Service
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, api studentApi) {
	studentOnly := roleMiddleware(errStudentsOnly, user.RoleStudent)

	g.GET("/student/upcoming-sessions", api.upcomingSessions, jwt, studentOnly)
	g.PUT("/students/profile", api.updateProfile, jwt, studentOnly)
}

// Handlers

func (api *studentApi) upcomingSessions(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	sessions, err := api.sessSvc.Upcoming(ctx.Request().Context(), claims.ID)
	if err != nil {
		return errors.Wrap(err, "listing upcoming sessions")
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *studentApi) updateProfile(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data user.StudentProfileUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentProfileUpdate")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.usrSvc.UpdateStudentProfile(ctx.Request().Context(), claims.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating student profile")
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"message": "Profile updated successfully.",
		"user":    usr,
	})
}
