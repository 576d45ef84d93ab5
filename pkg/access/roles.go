package access

// Role represents a party's role on a permit
type Role string

const (
	RoleOwner      Role = "OWNER"
	RoleExpeditor  Role = "EXPEDITOR"
	RoleContractor Role = "CONTRACTOR"
	RoleArchitect  Role = "ARCHITECT"
	RoleEngineer   Role = "ENGINEER"
	RoleInspector  Role = "INSPECTOR"
	RoleViewer     Role = "VIEWER"
)

// Capability represents one atomic permission token gating a class of operation
type Capability string

const (
	CapabilityRead              Capability = "read"
	CapabilityEdit              Capability = "edit"
	CapabilityDelete            Capability = "delete"
	CapabilityManageParties     Capability = "manage_parties"
	CapabilityUploadDocuments   Capability = "upload_documents"
	CapabilityManageInspections Capability = "manage_inspections"
	CapabilitySendMessages      Capability = "send_messages"
)

// CapabilitySet is a set of capability tokens
type CapabilitySet map[Capability]bool

// Has reports whether the set contains the given capability
func (s CapabilitySet) Has(c Capability) bool {
	return s[c]
}

// Tokens returns the capabilities as a sorted-insertion-order slice for
// JSON responses
func (s CapabilitySet) Tokens() []string {
	tokens := make([]string, 0, len(s))
	for _, c := range allCapabilities {
		if s[c] {
			tokens = append(tokens, string(c))
		}
	}
	return tokens
}

var allCapabilities = []Capability{
	CapabilityRead,
	CapabilityEdit,
	CapabilityDelete,
	CapabilityManageParties,
	CapabilityUploadDocuments,
	CapabilityManageInspections,
	CapabilitySendMessages,
}

// rolePermissions is the fixed role to capability mapping. It is constant
// data initialized once; PermissionsFor returns copies so callers cannot
// mutate it.
var rolePermissions = map[Role]CapabilitySet{
	RoleOwner: {
		CapabilityRead:              true,
		CapabilityEdit:              true,
		CapabilityDelete:            true,
		CapabilityManageParties:     true,
		CapabilityUploadDocuments:   true,
		CapabilityManageInspections: true,
		CapabilitySendMessages:      true,
	},
	RoleExpeditor: {
		CapabilityRead:              true,
		CapabilityEdit:              true,
		CapabilityManageParties:     true,
		CapabilityUploadDocuments:   true,
		CapabilityManageInspections: true,
		CapabilitySendMessages:      true,
	},
	RoleContractor: {
		CapabilityRead:            true,
		CapabilityUploadDocuments: true,
		CapabilitySendMessages:    true,
	},
	RoleArchitect: {
		CapabilityRead:            true,
		CapabilityUploadDocuments: true,
		CapabilitySendMessages:    true,
	},
	RoleEngineer: {
		CapabilityRead:            true,
		CapabilityUploadDocuments: true,
		CapabilitySendMessages:    true,
	},
	RoleInspector: {
		CapabilityRead:              true,
		CapabilityManageInspections: true,
		CapabilitySendMessages:      true,
	},
	RoleViewer: {
		CapabilityRead: true,
	},
}

// AllRoles returns every assignable role
func AllRoles() []Role {
	return []Role{
		RoleOwner,
		RoleExpeditor,
		RoleContractor,
		RoleArchitect,
		RoleEngineer,
		RoleInspector,
		RoleViewer,
	}
}

// IsValidRole reports whether the given string names a known role
func IsValidRole(role string) bool {
	_, ok := rolePermissions[Role(role)]
	return ok
}

// PermissionsFor returns the capability set for a role. Unrecognized role
// strings degrade to the viewer set so a bad row can only ever under-grant.
func PermissionsFor(role Role) CapabilitySet {
	perms, ok := rolePermissions[role]
	if !ok {
		perms = rolePermissions[RoleViewer]
	}

	out := make(CapabilitySet, len(perms))
	for c := range perms {
		out[c] = true
	}
	return out
}
