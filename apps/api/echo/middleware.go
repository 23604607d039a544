package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/edunex/core/user"
)

// requireRoles lets through the authenticated users holding one of roles.
func (s *Server) requireRoles(roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := s.auth.contextUser(ctx)
			if err != nil {
				return err
			}
			if !usr.HasAnyRole(roles...) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

var (
	staffOnly   = []user.Role{user.RoleAdmin, user.RoleInstructor}
	adminOnly   = []user.Role{user.RoleAdmin}
	studentOnly = []user.Role{user.RoleStudent}
)
