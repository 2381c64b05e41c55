package rbac

// Default policy for the two deployed roles. Admins additionally pass a
// fresh database role check on privileged mutations; this table only gates
// routing.
var RolePermissions = map[string][]string{
	"USER": {
		"exam:state",
		"exam:submit",
	},
	"ADMIN": {
		"exam:*",
		"admin:attempts",
		"admin:states",
		"admin:unlock",
	},
}
