package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorconnect/core"
	"github.com/trezcool/tutorconnect/core/application"
	"github.com/trezcool/tutorconnect/core/availability"
	"github.com/trezcool/tutorconnect/core/review"
	"github.com/trezcool/tutorconnect/core/session"
	"github.com/trezcool/tutorconnect/core/user"
)

type tutorApi struct {
	usrSvc    *user.Service
	availSvc  *availability.Service
	sessSvc   *session.Service
	reviewSvc *review.Service
	appSvc    *application.Service
	uploads   *uploadStore
	validate  *validator.Validate
}

func registerTutorAPI(g *echo.Group, jwt echo.MiddlewareFunc, api tutorApi) {
	tutorOnly := roleMiddleware(errTutorsOnly, user.RoleTutor)
	studentOnly := roleMiddleware(errStudentsOnlyRecommend, user.RoleStudent)

	// the group holds public routes: middlewares are set per route
	tg := g.Group("/tutors")

	// un-authed endpoints
	tg.GET("", api.list)
	tg.GET("/top", api.top)
	tg.POST("/apply", api.apply)
	tg.GET("/:id", api.retrieve)
	tg.GET("/:id/availability", api.availability)
	tg.GET("/:id/reviews", api.reviews)

	// authed endpoints
	tg.GET("/search", api.search, jwt)
	tg.GET("/recommend", api.recommend, jwt, studentOnly)

	// tutor's own endpoints
	tg.GET("/me", api.me, jwt, tutorOnly)
	tg.GET("/me/availability", api.myAvailability, jwt, tutorOnly)
	tg.GET("/me/sessions", api.mySessions, jwt, tutorOnly)
	tg.POST("/profile", api.updateProfile, jwt, tutorOnly)
	tg.POST("/change-password", api.changePassword, jwt, tutorOnly)
	tg.POST("/availability", api.replaceAvailability, jwt, tutorOnly)
	tg.DELETE("/sessions/:id/cancel", api.cancelSession, jwt, tutorOnly)
}

// Handlers

func (api *tutorApi) list(ctx echo.Context) error {
	filter := user.QueryFilter{
		Subject:  ctx.QueryParam("subject"),
		Location: ctx.QueryParam("location"),
	}
	if val := ctx.QueryParam("min_experience"); val != "" {
		minExp, err := strconv.Atoi(val)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "min_experience", Error: "min_experience must be a whole number"})
		}
		filter.MinExperience = minExp
	}
	var ord Ordering
	ord.Bind(ctx)

	tutors, err := api.usrSvc.QueryTutors(ctx.Request().Context(), filter, ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying tutors")
	}
	return ctx.JSON(http.StatusOK, api.uploads.tutorViews(ctx, tutors))
}

func (api *tutorApi) top(ctx echo.Context) error {
	stats, err := api.usrSvc.TopTutors(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting top tutors")
	}
	return ctx.JSON(http.StatusOK, api.uploads.tutorStatsViews(ctx, stats))
}

func (api *tutorApi) recommend(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	recs, err := api.usrSvc.Recommend(ctx.Request().Context(), claims.ID, ctx.QueryParam("subject"))
	if err != nil {
		return errors.Wrap(err, "recommending tutors")
	}
	return ctx.JSON(http.StatusOK, api.uploads.recommendationViews(ctx, recs))
}

func (api *tutorApi) search(ctx echo.Context) error {
	tutors, err := api.usrSvc.SearchTutors(ctx.Request().Context(), ctx.QueryParam("location"))
	if err != nil {
		return errors.Wrap(err, "searching tutors")
	}
	return ctx.JSON(http.StatusOK, api.uploads.tutorViews(ctx, tutors))
}

func (api *tutorApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx, user.ErrTutorNotFound)
	if err != nil {
		return err
	}
	tutor, err := api.usrSvc.GetTutor(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting tutor")
	}
	return ctx.JSON(http.StatusOK, tutorView{User: tutor, ProfilePicture: api.uploads.url(ctx, tutor.ProfilePicture)})
}

func (api *tutorApi) availability(ctx echo.Context) error {
	id, err := paramID(ctx, user.ErrTutorNotFound)
	if err != nil {
		return err
	}
	if _, err = api.usrSvc.GetTutor(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "getting tutor")
	}
	return api.listAvailability(ctx, id)
}

func (api *tutorApi) reviews(ctx echo.Context) error {
	id, err := paramID(ctx, user.ErrTutorNotFound)
	if err != nil {
		return err
	}
	if _, err = api.usrSvc.GetTutor(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "getting tutor")
	}
	revs, err := api.reviewSvc.ListForTutor(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "listing reviews")
	}
	return ctx.JSON(http.StatusOK, revs)
}

func (api *tutorApi) apply(ctx echo.Context) error {
	var data application.NewApplication
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewApplication")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pic, err := api.uploads.saveProfilePicture(ctx, "profile_picture", "profile")
	if err != nil {
		return errors.Wrap(err, "saving profile picture")
	}
	data.ProfilePicture = pic

	app, err := api.appSvc.Apply(ctx.Request().Context(), data)
	if err != nil {
		api.uploads.remove(pic)
		return errors.Wrap(err, "applying")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{
		"message":     "Application submitted successfully.",
		"application": app,
	})
}

func (api *tutorApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tutorView{User: usr, ProfilePicture: api.uploads.url(ctx, usr.ProfilePicture)})
}

func (api *tutorApi) myAvailability(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	return api.listAvailability(ctx, claims.ID)
}

func (api *tutorApi) listAvailability(ctx echo.Context, tutorID int) error {
	slots, err := api.availSvc.List(ctx.Request().Context(), tutorID)
	if err != nil {
		return errors.Wrap(err, "listing availability")
	}
	return ctx.JSON(http.StatusOK, slots)
}

func (api *tutorApi) mySessions(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	sessions, err := api.sessSvc.ListForTutor(ctx.Request().Context(), claims.ID)
	if err != nil {
		return errors.Wrap(err, "listing tutor sessions")
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *tutorApi) updateProfile(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data user.TutorProfileUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TutorProfileUpdate")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if data.ProfilePicture, err = api.uploads.saveProfilePicture(ctx, "profile", "profile_picture"); err != nil {
		return errors.Wrap(err, "saving profile picture")
	}

	if _, err = api.usrSvc.UpdateTutorProfile(ctx.Request().Context(), claims.ID, data); err != nil {
		api.uploads.remove(data.ProfilePicture)
		return errors.Wrap(err, "updating tutor profile")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: "Profile updated successfully."})
}

func (api *tutorApi) changePassword(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data user.PasswordChange
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordChange")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if err = api.usrSvc.ChangePassword(ctx.Request().Context(), claims.ID, data); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: "Password updated."})
}

func (api *tutorApi) replaceAvailability(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data availability.Update
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to availability.Update")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if _, err = api.availSvc.Replace(ctx.Request().Context(), claims.ID, data); err != nil {
		return errors.Wrap(err, "replacing availability")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: "Availability updated."})
}

func (api *tutorApi) cancelSession(ctx echo.Context) error {
	actor, err := getContextActor(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, session.ErrNotFound)
	if err != nil {
		return err
	}
	if _, err = api.sessSvc.TutorCancel(ctx.Request().Context(), actor, id); err != nil {
		return errors.Wrap(err, "cancelling session")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: "Session cancelled and notifications sent."})
}
