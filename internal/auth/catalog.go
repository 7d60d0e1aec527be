package auth

// Built-in role identifiers. Ids are stable authorization keys; display
// names live in the role records. The list is ordered by privilege, highest
// first, but authorization never infers hierarchy from it: allow-lists are
// exact-match. The ordering only feeds self-protection rules around the
// highest-privilege role.
const (
	RoleSuperAdmin        = "role-super-admin"
	RoleAdmin             = "role-admin"
	RoleRegistrar         = "role-registrar"
	RoleCourseCoordinator = "role-course-coordinator"
	RoleFinanceOfficer    = "role-finance-officer"
	RoleTeacher           = "role-teacher"
	RoleLibrarian         = "role-librarian"
	RoleParent            = "role-parent"
	RoleStudent           = "role-student"
	RoleGuest             = "role-guest"
)

// BuiltinRoles lists every STATIC role, ordered by privilege descending.
var BuiltinRoles = []string{
	RoleSuperAdmin,
	RoleAdmin,
	RoleRegistrar,
	RoleCourseCoordinator,
	RoleFinanceOfficer,
	RoleTeacher,
	RoleLibrarian,
	RoleParent,
	RoleStudent,
	RoleGuest,
}

// IsBuiltinRole reports whether id names one of the STATIC roles.
func IsBuiltinRole(id string) bool {
	for _, r := range BuiltinRoles {
		if r == id {
			return true
		}
	}
	return false
}

// Permission keys, namespaced "resource:action". Purely descriptive: the
// runtime treats them as opaque strings grouped into roles.
const (
	PermUsersRead       = "users:read"
	PermUsersCreate     = "users:create"
	PermUsersUpdate     = "users:update"
	PermUsersDelete     = "users:delete"
	PermUsersAssignRole = "users:assign-role"

	PermRolesRead   = "roles:read"
	PermRolesCreate = "roles:create"
	PermRolesUpdate = "roles:update"
	PermRolesDelete = "roles:delete"

	PermPermissionsRead   = "permissions:read"
	PermPermissionsCreate = "permissions:create"
	PermPermissionsUpdate = "permissions:update"
	PermPermissionsDelete = "permissions:delete"

	PermStudentsRead   = "students:read"
	PermStudentsCreate = "students:create"
	PermStudentsUpdate = "students:update"
	PermStudentsDelete = "students:delete"

	PermFeesRead            = "fees:read"
	PermFeesCreate          = "fees:create"
	PermFeesUpdate          = "fees:update"
	PermFeesDelete          = "fees:delete"
	PermFeesPay             = "fees:pay"
	PermFeesRefund          = "fees:refund"
	PermFeesGenerateReceipt = "fees:generate-receipt"

	PermTeachersRead   = "teachers:read"
	PermTeachersCreate = "teachers:create"
	PermTeachersUpdate = "teachers:update"
	PermTeachersDelete = "teachers:delete"

	PermBooksRead  = "books:read"
	PermBooksWrite = "books:write"

	PermInstitutionsRead   = "institutions:read"
	PermInstitutionsUpdate = "institutions:update"

	PermAuthRegisterUser = "auth:register-user"

	PermSystemViewLogs  = "system:view-logs"
	PermSystemConfigure = "system:configure"

	PermAuditView   = "audit:view"
	PermAuditExport = "audit:export"

	PermCoursesRead          = "courses:read"
	PermCoursesCreate        = "courses:create"
	PermCoursesUpdate        = "courses:update"
	PermCoursesDelete        = "courses:delete"
	PermCoursesAssignTeacher = "courses:assign-teacher"
	PermCoursesAssignStudent = "courses:assign-student"
)

// AllPermissionKeys enumerates the full built-in permission catalog; the
// seed data and tests derive from it.
var AllPermissionKeys = []string{
	PermUsersRead, PermUsersCreate, PermUsersUpdate, PermUsersDelete, PermUsersAssignRole,
	PermRolesRead, PermRolesCreate, PermRolesUpdate, PermRolesDelete,
	PermPermissionsRead, PermPermissionsCreate, PermPermissionsUpdate, PermPermissionsDelete,
	PermStudentsRead, PermStudentsCreate, PermStudentsUpdate, PermStudentsDelete,
	PermFeesRead, PermFeesCreate, PermFeesUpdate, PermFeesDelete,
	PermFeesPay, PermFeesRefund, PermFeesGenerateReceipt,
	PermTeachersRead, PermTeachersCreate, PermTeachersUpdate, PermTeachersDelete,
	PermBooksRead, PermBooksWrite,
	PermInstitutionsRead, PermInstitutionsUpdate,
	PermAuthRegisterUser,
	PermSystemViewLogs, PermSystemConfigure,
	PermAuditView, PermAuditExport,
	PermCoursesRead, PermCoursesCreate, PermCoursesUpdate, PermCoursesDelete,
	PermCoursesAssignTeacher, PermCoursesAssignStudent,
}
