package echoapi

import (
	"github.com/labstack/echo/v4"
)

// roleMiddleware lets through the users having one of roles; others get forbidden.
func roleMiddleware(forbidden *echo.HTTPError, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextClaims(ctx); err != nil {
				return err
			}
			if contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return forbidden
		}
	}
}
