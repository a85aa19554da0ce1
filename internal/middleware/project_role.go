package middleware

import (
	"context"
	"errors"
	"log"
	"slices"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/apierr"
	"flowbase/internal/models"
	"flowbase/internal/store"
)

// MemberFinder resolves a caller's membership in a project
type MemberFinder interface {
	FindMember(ctx context.Context, projectID, userID primitive.ObjectID) (*models.Member, error)
}

// Messages returned by the project role gate
const (
	MsgNotProjectMember = "You're not part of this project"
	MsgNoPermission     = "You don't have permission to perform this action"
)

// RequireProjectRole allows the request only if the caller holds one of the
// allowed roles in the project named by the :projectId path parameter.
func RequireProjectRole(members MemberFinder, allowed ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := UserID(c)
		if err != nil {
			return err
		}

		projectID, err := ObjectIDParam(c, "projectId")
		if err != nil {
			return err
		}

		member, err := members.FindMember(c.UserContext(), projectID, userID)
		if errors.Is(err, store.ErrNotFound) {
			return apierr.Forbidden(MsgNotProjectMember)
		}
		if err != nil {
			log.Printf("❌ Membership lookup failed for project %s: %v", projectID.Hex(), err)
			return apierr.Internal("Failed to check project membership").Wrap(err)
		}

		if !slices.Contains(allowed, member.Role) {
			return apierr.Forbidden(MsgNoPermission)
		}

		c.Locals(LocalProjectRole, member.Role)
		c.Locals(LocalProjectMember, member)
		return c.Next()
	}
}

// RequirePermission gates a route on every role holding the permission
func RequirePermission(members MemberFinder, perm models.Permission) fiber.Handler {
	return RequireProjectRole(members, models.RolesWith(perm)...)
}

// ProjectRole returns the role resolved by RequireProjectRole
func ProjectRole(c *fiber.Ctx) models.Role {
	role, _ := c.Locals(LocalProjectRole).(models.Role)
	return role
}

// ObjectIDParam parses a hex ObjectID path parameter, 400 when malformed
func ObjectIDParam(c *fiber.Ctx, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Params(name))
	if err != nil {
		return primitive.NilObjectID, apierr.Validation("Invalid "+name, apierr.FieldError{
			Field:   name,
			Tag:     "objectid",
			Message: name + " must be a valid id",
		})
	}
	return id, nil
}
