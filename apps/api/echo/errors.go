package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorconnect/core"
	"github.com/trezcool/tutorconnect/core/application"
	"github.com/trezcool/tutorconnect/core/report"
	"github.com/trezcool/tutorconnect/core/session"
	"github.com/trezcool/tutorconnect/core/user"
)

var (
	errUnauthorized          = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAdminOnly             = echo.NewHTTPError(http.StatusForbidden, "Admin access only.")
	errStudentsOnlyBook      = echo.NewHTTPError(http.StatusForbidden, "Only students can book sessions.")
	errStudentsOnlyReview    = echo.NewHTTPError(http.StatusForbidden, "Only students can leave reviews.")
	errStudentsOnlyRecommend = echo.NewHTTPError(http.StatusForbidden, "Only students can get recommendations.")
	errStudentsOnly          = echo.NewHTTPError(http.StatusForbidden, "Only students can access this resource.")
	errTutorsOnlyComplete    = echo.NewHTTPError(http.StatusForbidden, "Only tutors can complete sessions.")
	errTutorsOnly            = echo.NewHTTPError(http.StatusForbidden, "Only tutors can access this resource.")
	errInvalidFile           = echo.NewHTTPError(http.StatusBadRequest, "Only image files are allowed.")

	errInvalidData = "Invalid data."

	// domain errors that are not client validation errors
	domainErrCodes = map[error]int{
		user.ErrNotFound:              http.StatusNotFound,
		user.ErrTutorNotFound:         http.StatusNotFound,
		session.ErrNotFound:           http.StatusNotFound,
		session.ErrNotFoundOrNotYours: http.StatusNotFound,
		session.ErrNotOwnerCancel:     http.StatusForbidden,
		session.ErrNotOwnerReschedule: http.StatusForbidden,
		application.ErrNotFound:       http.StatusNotFound,
		report.ErrUnknownExport:       http.StatusNotFound,
	}
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
// Every error renders as {"error": string}, plus "fields" on validation failures.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code    int
			message string
			fields  map[string]string
		)

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			if origErr == middleware.ErrJWTMissing {
				origErr = echo.NewHTTPError(http.StatusUnauthorized, middleware.ErrJWTMissing.Message)
			}
			code = origErr.Code
			message = http.StatusText(code)
			if m, ok := origErr.Message.(string); ok {
				message = m
			}
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = errInvalidData
			fields = make(map[string]string, len(origErr))
			for _, fErr := range core.TranslateFieldErrors(origErr, translator) {
				fields[fErr.Field] = fErr.Error
			}
		case *core.ValidationError:
			code = http.StatusBadRequest
			message = origErr.Error()
			if len(origErr.Fields) > 0 {
				fields = make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fields[fErr.Field] = fErr.Error
				}
				if message == "" {
					message = errInvalidData
				}
			}
		default:
			if c, ok := domainErrCode(cause); ok {
				code, message = c, cause.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			message = http.StatusText(http.StatusInternalServerError)

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.ID
				usr.Role = claims.Role
			}
			logger.Error(message, errors.Wrap(err, ctx.Request().Method+" "+ctx.Path()), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
			if ctx.Echo().Debug {
				message = err.Error()
			}
		}

		body := echo.Map{"error": message}
		if fields != nil {
			body["fields"] = fields
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, body)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// domainErrCode maps the domain sentinels to their status code.
func domainErrCode(err error) (int, bool) {
	for target, code := range domainErrCodes {
		if errors.Is(err, target) {
			return code, true
		}
	}
	return 0, false
}
