package catalog

// Canonical permission keys of the rate-negotiation domain.
const (
	PermViewRates    = "view:rates:organization"
	PermUpdateRates  = "update:rates:organization"
	PermApproveRates = "approve:rates:organization"

	PermCreateNegotiations  = "create:negotiations:organization"
	PermRespondNegotiations = "respond:negotiations:organization"
	PermViewNegotiations    = "view:negotiations:organization"

	PermViewAnalytics = "view:analytics:organization"
	PermExportReports = "export:reports:organization"

	PermManageActors        = "manage:actors:organization"
	PermManageRoles         = "manage:roles:organization"
	PermManageOrganizations = "manage:organizations:organization"
)

// AllPermissions lists every key the platform understands, used for catalog
// validation and seeding.
var AllPermissions = []string{
	PermViewRates,
	PermUpdateRates,
	PermApproveRates,
	PermCreateNegotiations,
	PermRespondNegotiations,
	PermViewNegotiations,
	PermViewAnalytics,
	PermExportReports,
	PermManageActors,
	PermManageRoles,
	PermManageOrganizations,
}
