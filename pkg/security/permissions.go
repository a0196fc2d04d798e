package security

// Actions gated by an explicit permission check before a lifecycle
// operation proceeds.
const (
	ActionTransferAsset = "asset.transfer"
	ActionRetireAsset   = "asset.retire"
)

// PermissionChecker answers whether an actor may perform an action on an
// asset. The core only consumes the answer; how it is derived (roles,
// grants) is this package's concern.
type PermissionChecker interface {
	HasPermission(actor, action string, assetID int) bool
}

var actionMinimumRole = map[string]int{
	ActionTransferAsset: RoleModerator,
	ActionRetireAsset:   RoleAdmin,
}

type roleLookup interface {
	GetRoleByUsername(username string) (string, error)
}

// RoleChecker maps the flat role hierarchy onto the gated actions.
type RoleChecker struct {
	users roleLookup
}

func NewRoleChecker(users roleLookup) *RoleChecker {
	return &RoleChecker{users: users}
}

func (c *RoleChecker) HasPermission(actor, action string, assetID int) bool {
	required, known := actionMinimumRole[action]
	if !known {
		return false
	}

	role, err := c.users.GetRoleByUsername(actor)
	if err != nil {
		return false
	}

	level, ok := roleHierarchy[role]
	return ok && level >= required
}
