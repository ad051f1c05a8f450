package permission

// Resolve computes the effective permissions for role, layering a stored
// participant override on top of the role defaults one field at a time.
// Admin always receives every capability; overrides are ignored for it.
func (t *Table) Resolve(role Role, overrides Overrides) Effective {
	if role == RoleAdmin {
		perms := allGranted()
		return Effective{
			Role:        role,
			Permissions: perms,
			Tabs:        visibleTabs(role, perms, nil),
			Source:      SourceAdmin,
		}
	}

	perms := t.Defaults(role)
	source := SourceRole
	for capability, value := range overrides {
		if value == nil || !IsCapability(string(capability)) {
			continue
		}
		perms[capability] = *value
		source = SourceParticipant
	}

	return Effective{
		Role:        role,
		Permissions: perms,
		Tabs:        visibleTabs(role, perms, overrides),
		Source:      source,
	}
}

// visibleTabs derives the tab list:
//   - admin and coordinator see every tab
//   - client sees every tab unless its capability was explicitly set false
//   - third_party and agency see a tab only when its capability is true
func visibleTabs(role Role, perms PermissionSet, overrides Overrides) []Tab {
	tabs := make([]Tab, 0, len(tabCapabilities))
	for _, tc := range tabCapabilities {
		switch role {
		case RoleAdmin, RoleCoordinator:
			tabs = append(tabs, tc.tab)
		case RoleClient:
			if v, ok := overrides[tc.capability]; ok && v != nil && !*v {
				continue
			}
			tabs = append(tabs, tc.tab)
		case RoleThirdParty, RoleAgency:
			if perms.Can(tc.capability) {
				tabs = append(tabs, tc.tab)
			}
		}
	}
	return tabs
}
