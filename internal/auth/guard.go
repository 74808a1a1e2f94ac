package auth

import (
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/apperr"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/models"
)

// Principal is the authenticated caller.
type Principal struct {
	ID string
}

type Action string

const (
	ActionReadPublic Action = "read-public"
	ActionRead       Action = "read"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
)

// Authorize allows an action iff the principal owns the resource. Public reads
// are always allowed. Call it only after the resource was found so denial and
// absence stay distinguishable.
func Authorize(p Principal, res models.Resource, action Action) error {
	if action == ActionReadPublic {
		return nil
	}
	owner := res.Meta().OwnerID
	if p.ID == "" || owner == "" || p.ID != owner {
		return apperr.Forbidden("not authorized to " + string(action) + " this resource")
	}
	return nil
}
