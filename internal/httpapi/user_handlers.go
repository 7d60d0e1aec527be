package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/thenishantgiri/CampusCore/internal/auth"
)

var adminRoles = []string{auth.RoleAdmin, auth.RoleSuperAdmin}

var (
	opFindUsers = auth.Operation{
		Name:        "users.list",
		Roles:       adminRoles,
		Permissions: []string{auth.PermUsersRead},
	}
	opFindUser = auth.Operation{
		Name:        "users.get",
		Roles:       adminRoles,
		Permissions: []string{auth.PermUsersRead},
	}
	opUpdateUserRole = auth.Operation{
		Name:        "users.assign_role",
		Roles:       adminRoles,
		Permissions: []string{auth.PermUsersAssignRole},
	}
	opDeleteUser = auth.Operation{
		Name:        "users.delete",
		Roles:       adminRoles,
		Permissions: []string{auth.PermUsersDelete},
	}
)

type updateUserRoleRequest struct {
	RoleID string `json:"role_id"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.authorize(w, r, opFindUsers) {
		return
	}
	q := auth.UserQuery{
		RoleID: strings.TrimSpace(r.URL.Query().Get("role_id")),
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
	}
	var err error
	if q.Page, err = queryInt(r, "page", 0); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if q.Limit, err = queryInt(r, "limit", 0); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	page, err := a.svc.FindUsers(r.Context(), q)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	userID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		if !a.authorize(w, r, opFindUser) {
			return
		}
		user, err := a.svc.FindUserByID(r.Context(), userID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if !a.authorize(w, r, opDeleteUser) {
			return
		}
		deleted, err := a.svc.DeleteUser(r.Context(), userID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, deleted)

	case len(parts) == 2 && parts[1] == "role":
		if r.Method != http.MethodPatch {
			methodNotAllowed(w, r, http.MethodPatch)
			return
		}
		if !a.authorize(w, r, opUpdateUserRole) {
			return
		}
		var req updateUserRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		updated, err := a.svc.UpdateUserRole(r.Context(), userID, req.RoleID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case len(parts) == 1:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)

	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return val, nil
}
