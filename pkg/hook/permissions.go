package hook

// interceptablePermissions is the static filter of permission types the
// plugin is willing to divert. Anything else passes through to the host's
// normal prompt flow untouched.
var interceptablePermissions = map[string]struct{}{
	"tool_use":        {},
	"file_write":      {},
	"file_edit":       {},
	"shell_command":   {},
	"network_request": {},
	"mcp_tool":        {},
}

// IsInterceptablePermission reports whether asks of the given permission
// type may be diverted into the blocker log.
func IsInterceptablePermission(permissionType string) bool {
	_, ok := interceptablePermissions[permissionType]

	return ok
}
