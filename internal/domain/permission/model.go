package permission

import (
	"sort"
	"strings"
)

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleCoordinator Role = "coordinator"
	RoleClient      Role = "client"
	RoleThirdParty  Role = "third_party"
	RoleAgency      Role = "agency"
)

var Roles = []Role{RoleAdmin, RoleCoordinator, RoleClient, RoleThirdParty, RoleAgency}

// Elevated roles may manage an exchange; every exchange keeps at least one.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleCoordinator
}

// NormalizeRole accepts the legacy spellings stored by older clients
// ("Admin", "third-party", "THIRDPARTY").
func NormalizeRole(value string) (Role, bool) {
	key := strings.ToLower(strings.TrimSpace(value))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	switch key {
	case "admin", "administrator":
		return RoleAdmin, true
	case "coordinator", "exchange_coordinator":
		return RoleCoordinator, true
	case "client":
		return RoleClient, true
	case "third_party", "thirdparty":
		return RoleThirdParty, true
	case "agency":
		return RoleAgency, true
	default:
		return "", false
	}
}

type Capability string

const (
	CanEdit               Capability = "can_edit"
	CanDelete             Capability = "can_delete"
	CanAddParticipants    Capability = "can_add_participants"
	CanUploadDocuments    Capability = "can_upload_documents"
	CanSendMessages       Capability = "can_send_messages"
	CanViewOverview       Capability = "can_view_overview"
	CanViewMessages       Capability = "can_view_messages"
	CanViewTasks          Capability = "can_view_tasks"
	CanCreateTasks        Capability = "can_create_tasks"
	CanEditTasks          Capability = "can_edit_tasks"
	CanAssignTasks        Capability = "can_assign_tasks"
	CanViewDocuments      Capability = "can_view_documents"
	CanDownloadDocuments  Capability = "can_download_documents"
	CanDeleteDocuments    Capability = "can_delete_documents"
	CanViewParticipants   Capability = "can_view_participants"
	CanManageParticipants Capability = "can_manage_participants"
	CanViewFinancial      Capability = "can_view_financial"
	CanEditFinancial      Capability = "can_edit_financial"
	CanViewTimeline       Capability = "can_view_timeline"
	CanEditTimeline       Capability = "can_edit_timeline"
	CanViewCompliance     Capability = "can_view_compliance"
	CanViewAudit          Capability = "can_view_audit"
	CanViewPPData         Capability = "can_view_pp_data"
	CanManageInvitations  Capability = "can_manage_invitations"
)

var Capabilities = []Capability{
	CanEdit, CanDelete, CanAddParticipants, CanUploadDocuments, CanSendMessages,
	CanViewOverview, CanViewMessages,
	CanViewTasks, CanCreateTasks, CanEditTasks, CanAssignTasks,
	CanViewDocuments, CanDownloadDocuments, CanDeleteDocuments,
	CanViewParticipants, CanManageParticipants,
	CanViewFinancial, CanEditFinancial,
	CanViewTimeline, CanEditTimeline,
	CanViewCompliance, CanViewAudit, CanViewPPData, CanManageInvitations,
}

func IsCapability(value string) bool {
	for _, c := range Capabilities {
		if string(c) == value {
			return true
		}
	}
	return false
}

type Tab string

const (
	TabOverview     Tab = "overview"
	TabMessages     Tab = "messages"
	TabTasks        Tab = "tasks"
	TabDocuments    Tab = "documents"
	TabParticipants Tab = "participants"
	TabFinancial    Tab = "financial"
	TabTimeline     Tab = "timeline"
	TabCompliance   Tab = "compliance"
)

// tabCapabilities lists the tabs in display order with the capability that
// gates each one.
var tabCapabilities = []struct {
	tab        Tab
	capability Capability
}{
	{TabOverview, CanViewOverview},
	{TabMessages, CanSendMessages},
	{TabTasks, CanViewTasks},
	{TabDocuments, CanViewDocuments},
	{TabParticipants, CanViewParticipants},
	{TabFinancial, CanViewFinancial},
	{TabTimeline, CanViewTimeline},
	{TabCompliance, CanViewCompliance},
}

// PermissionSet holds one boolean per capability. Missing keys are false.
type PermissionSet map[Capability]bool

func (p PermissionSet) Can(c Capability) bool {
	return p[c]
}

func (p PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Granted returns the capabilities that are true, sorted.
func (p PermissionSet) Granted() []Capability {
	out := make([]Capability, 0, len(p))
	for c, ok := range p {
		if ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func allGranted() PermissionSet {
	out := make(PermissionSet, len(Capabilities))
	for _, c := range Capabilities {
		out[c] = true
	}
	return out
}

// Overrides is the permissions object stored on a participant record.
// A nil value means "not set" and keeps the role default.
type Overrides map[Capability]*bool

// Source describes where an effective permission set came from.
type Source string

const (
	SourceAdmin       Source = "admin"
	SourceRole        Source = "role_default"
	SourceParticipant Source = "participant"
	SourceFallback    Source = "fallback"
)

type Effective struct {
	Role          Role          `json:"role"`
	Permissions   PermissionSet `json:"permissions" casing:"passthrough"`
	Tabs          []Tab         `json:"tabs"`
	Source        Source        `json:"source"`
	IsParticipant bool          `json:"is_participant"`
}

func (e Effective) Can(c Capability) bool {
	return e.Permissions.Can(c)
}
