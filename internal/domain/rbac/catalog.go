package rbac

import "github.com/mindlab/health/internal/platform/auth"

// Permission names. Catalog is the source of truth; `rbac seed` writes it
// to the permissions and role_permissions tables.
const (
	PermUsersView        = "users.view"
	PermUsersManageRoles = "users.manage_roles"
	PermUsersManage      = "users.manage"

	PermRBACView = "rbac.view"

	PermAppointmentsCreate  = "appointments.create"
	PermAppointmentsViewOwn = "appointments.view_own"
	PermAppointmentsViewAll = "appointments.view_all"
	PermAppointmentsUpdate  = "appointments.update"
	PermAppointmentsCancel  = "appointments.cancel"

	PermMessagesSend    = "messages.send"
	PermMessagesViewOwn = "messages.view_own"
	PermMessagesViewAll = "messages.view_all"

	PermMealsViewOwn      = "meals.view_own"
	PermMealsCreate       = "meals.create"
	PermMealsViewAll      = "meals.view_all"
	PermMealsManageTypes  = "meals.manage_types"
	PermMealsViewAssigned = "meals.view_assigned"
	PermMealsCreatePlans  = "meals.create_plans"
	PermMealsEditPlans    = "meals.edit_plans"

	PermNutritionView              = "nutrition.view"
	PermNutritionTrack             = "nutrition.track"
	PermNutritionViewAll           = "nutrition.view_all"
	PermNutritionManageIngredients = "nutrition.manage_ingredients"
	PermNutritionViewAssigned      = "nutrition.view_assigned"
	PermNutritionCreatePlans       = "nutrition.create_plans"
	PermNutritionEditPlans         = "nutrition.edit_plans"

	PermSettingsView   = "settings.view"
	PermSettingsManage = "settings.manage"

	PermAnalyticsView    = "analytics.view"
	PermAnalyticsViewAll = "analytics.view_all"
	PermAnalyticsRecord  = "analytics.record"

	PermSecurityView   = "security.view"
	PermSecurityManage = "security.manage"

	PermAdminAccess = "admin.access"

	PermHealthView = "health.view"

	PermPatientsViewAssigned = "patients.view_assigned"
	PermPatientsViewAll      = "patients.view_all"
	PermPatientsAssign       = "patients.assign"
	PermPatientsManage       = "patients.manage"

	PermHealthRecordsViewOwn      = "health_records.view_own"
	PermHealthRecordsViewAssigned = "health_records.view_assigned"
	PermHealthRecordsViewAll      = "health_records.view_all"
	PermHealthRecordsCreate       = "health_records.create"
	PermHealthRecordsEditOwn      = "health_records.edit_own"
	PermHealthRecordsEditAssigned = "health_records.edit_assigned"
	PermHealthRecordsDelete       = "health_records.delete"

	PermEarningsViewOwn = "earnings.view_own"
	PermEarningsViewAll = "earnings.view_all"
	PermEarningsCreate  = "earnings.create"
	PermEarningsManage  = "earnings.manage"

	PermCommissionView   = "commission.view"
	PermCommissionManage = "commission.manage"
)

// Modules is the fixed list reported by the module access endpoint.
var Modules = []string{
	"users", "appointments", "messages", "analytics", "security", "settings",
	"meals", "nutrition", "health", "admin", "patients", "health_records", "earnings",
	"commission",
}

// Definition describes one catalog entry.
type Definition struct {
	Name        string
	Description string
	Module      string
	Action      string
}

// Catalog lists every permission known to the platform.
var Catalog = []Definition{
	{PermUsersView, "View user accounts", "users", "view"},
	{PermUsersManageRoles, "Change user roles", "users", "manage"},
	{PermUsersManage, "Activate, deactivate and delete users", "users", "manage"},
	{PermRBACView, "View the permission catalog", "rbac", "view"},
	{PermAppointmentsCreate, "Book appointments", "appointments", "create"},
	{PermAppointmentsViewOwn, "View own appointments", "appointments", "view"},
	{PermAppointmentsViewAll, "View all appointments", "appointments", "view"},
	{PermAppointmentsUpdate, "Update appointments", "appointments", "update"},
	{PermAppointmentsCancel, "Cancel appointments", "appointments", "cancel"},
	{PermMessagesSend, "Send messages", "messages", "send"},
	{PermMessagesViewOwn, "View own messages", "messages", "view"},
	{PermMessagesViewAll, "View all messages", "messages", "view"},
	{PermMealsViewOwn, "View own meals", "meals", "view"},
	{PermMealsCreate, "Log meals", "meals", "create"},
	{PermMealsViewAll, "View all meals", "meals", "view"},
	{PermMealsManageTypes, "Manage meal types", "meals", "manage"},
	{PermMealsViewAssigned, "View meals for assigned patients", "meals", "view"},
	{PermMealsCreatePlans, "Create meal plans", "meals", "create"},
	{PermMealsEditPlans, "Edit meal plans", "meals", "edit"},
	{PermNutritionView, "View nutrition data", "nutrition", "view"},
	{PermNutritionTrack, "Track nutrient intake", "nutrition", "track"},
	{PermNutritionViewAll, "View all nutrition data", "nutrition", "view"},
	{PermNutritionManageIngredients, "Manage the ingredient database", "nutrition", "manage"},
	{PermNutritionViewAssigned, "View nutrition for assigned patients", "nutrition", "view"},
	{PermNutritionCreatePlans, "Create nutrition plans", "nutrition", "create"},
	{PermNutritionEditPlans, "Edit nutrition plans", "nutrition", "edit"},
	{PermSettingsView, "View public settings", "settings", "view"},
	{PermSettingsManage, "Manage system settings", "settings", "manage"},
	{PermAnalyticsView, "View analytics dashboards", "analytics", "view"},
	{PermAnalyticsViewAll, "View platform-wide analytics", "analytics", "view"},
	{PermAnalyticsRecord, "Record activity", "analytics", "record"},
	{PermSecurityView, "View security events and alerts", "security", "view"},
	{PermSecurityManage, "Manage security alerts", "security", "manage"},
	{PermAdminAccess, "Access the admin console", "admin", "access"},
	{PermHealthView, "View health summaries", "health", "view"},
	{PermPatientsViewAssigned, "View assigned patients", "patients", "view"},
	{PermPatientsViewAll, "View all patients", "patients", "view"},
	{PermPatientsAssign, "Assign patients to providers", "patients", "assign"},
	{PermPatientsManage, "Manage patient assignments", "patients", "manage"},
	{PermHealthRecordsViewOwn, "View own health records", "health_records", "view"},
	{PermHealthRecordsViewAssigned, "View assigned patient records", "health_records", "view"},
	{PermHealthRecordsViewAll, "View all health records", "health_records", "view"},
	{PermHealthRecordsCreate, "Create health records", "health_records", "create"},
	{PermHealthRecordsEditOwn, "Edit own created records", "health_records", "edit"},
	{PermHealthRecordsEditAssigned, "Edit records for assigned patients", "health_records", "edit"},
	{PermHealthRecordsDelete, "Delete health records", "health_records", "delete"},
	{PermEarningsViewOwn, "View own earnings", "earnings", "view"},
	{PermEarningsViewAll, "View all earnings", "earnings", "view"},
	{PermEarningsCreate, "Create earnings records", "earnings", "create"},
	{PermEarningsManage, "Manage earnings and payments", "earnings", "manage"},
	{PermCommissionView, "View commission structure", "commission", "view"},
	{PermCommissionManage, "Manage commission rates", "commission", "manage"},
}

// providerGrants is shared by every care-delivering role.
var providerGrants = []string{
	PermAppointmentsViewOwn, PermAppointmentsUpdate, PermAppointmentsCancel,
	PermMessagesSend, PermMessagesViewOwn,
	PermMealsViewAssigned, PermNutritionView, PermNutritionViewAssigned,
	PermSettingsView, PermAnalyticsRecord, PermHealthView,
	PermPatientsViewAssigned,
	PermHealthRecordsViewAssigned, PermHealthRecordsCreate, PermHealthRecordsEditOwn, PermHealthRecordsEditAssigned,
	PermEarningsViewOwn, PermEarningsCreate, PermCommissionView,
}

// planGrants lets a provider author meal and nutrition plans.
var planGrants = []string{
	PermMealsCreatePlans, PermMealsEditPlans, PermNutritionCreatePlans, PermNutritionEditPlans,
}

// DefaultGrants maps each role to its seeded permissions. Admin holds every
// permission implicitly and is granted the full catalog so listings match.
func DefaultGrants() map[auth.Role][]string {
	all := make([]string, 0, len(Catalog))
	for _, d := range Catalog {
		all = append(all, d.Name)
	}
	return map[auth.Role][]string{
		auth.RoleAdmin: all,
		auth.RolePatient: {
			PermAppointmentsCreate, PermAppointmentsViewOwn, PermAppointmentsUpdate, PermAppointmentsCancel,
			PermMessagesSend, PermMessagesViewOwn,
			PermMealsViewOwn, PermMealsCreate, PermNutritionView, PermNutritionTrack,
			PermSettingsView, PermAnalyticsRecord, PermHealthView, PermHealthRecordsViewOwn,
		},
		auth.RoleTherapist:   concat(providerGrants, []string{PermAnalyticsView}),
		auth.RolePhysician:   concat(providerGrants, planGrants),
		auth.RoleHealthCoach: concat(providerGrants, planGrants),
		auth.RolePartner: {
			PermMessagesSend, PermMessagesViewOwn, PermSettingsView, PermAnalyticsRecord,
		},
	}
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
