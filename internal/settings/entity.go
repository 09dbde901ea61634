package settings

// StrictUserPermissionsFlag is the host-wide flag that gates every mapping
// save. Named in the configuration error so operators know what to enable.
const StrictUserPermissionsFlag = "apply_strict_user_permissions"

// Settings is the host-wide system configuration consumed by the validator.
type Settings struct {
	ApplyStrictUserPermissions bool `json:"apply_strict_user_permissions"`
}
