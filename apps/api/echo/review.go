package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorconnect/core/review"
	"github.com/trezcool/tutorconnect/core/subject"
	"github.com/trezcool/tutorconnect/core/user"
)

type reviewApi struct {
	usrSvc   *user.Service
	svc      *review.Service
	validate *validator.Validate
}

func registerReviewAPI(g *echo.Group, jwt echo.MiddlewareFunc, api reviewApi) {
	g.POST("/reviews", api.create, jwt, roleMiddleware(errStudentsOnlyReview, user.RoleStudent))
}

func (api *reviewApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data review.NewReview
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReview")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	rev, err := api.svc.Submit(ctx.Request().Context(), claims.ID, data)
	if err != nil {
		return errors.Wrap(err, "submitting review")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{
		"message": "Review submitted.",
		"review":  rev,
	})
}

func registerSubjectAPI(g *echo.Group, repo subject.Repository) {
	g.GET("/subjects", func(ctx echo.Context) error {
		subjects, err := repo.QuerySubjects(ctx.Request().Context())
		if err != nil {
			return errors.Wrap(err, "querying subjects")
		}
		return ctx.JSON(http.StatusOK, subjects)
	})
}
