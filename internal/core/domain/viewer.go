package domain

import "sort"

// Role is a viewer's position in the ownership hierarchy.
type Role string

const (
	RoleBranch          Role = "branch"
	RoleSchool          Role = "school"
	RoleBranchGroupUser Role = "branchGroupUser"
	RoleParent          Role = "parent"
)

// Roles lists every role allowed to open a live channel.
var Roles = []Role{RoleBranch, RoleSchool, RoleBranchGroupUser, RoleParent}

// Claims is the identity carried by a viewer credential.
type Claims struct {
	Role     Role     `json:"role"`
	ID       string   `json:"id,omitempty"`
	Branches []string `json:"branches,omitempty"`
	ParentID string   `json:"parent,omitempty"`
}

// DeviceSet is the set of device ids a viewer may observe.
type DeviceSet map[string]struct{}

// NewDeviceSet builds a set from ids, ignoring empty values.
func NewDeviceSet(ids ...string) DeviceSet {
	s := make(DeviceSet, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

// Contains reports whether id is in the set.
func (s DeviceSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the set members in sorted order.
func (s DeviceSet) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Subscriber is one connected, authenticated viewer.
type Subscriber struct {
	ConnectionID      string
	Role              Role
	AuthorizedDevices DeviceSet
	UsePreferences    bool
}
