package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/thenishantgiri/CampusCore/internal/auth"
)

var (
	opCreateRole = auth.Operation{
		Name:        "roles.create",
		Roles:       adminRoles,
		Permissions: []string{auth.PermRolesCreate},
	}
	opFindRoles = auth.Operation{
		Name:        "roles.list",
		Roles:       adminRoles,
		Permissions: []string{auth.PermRolesRead},
	}
	opUpdateRole = auth.Operation{
		Name:        "roles.update",
		Roles:       adminRoles,
		Permissions: []string{auth.PermRolesUpdate},
	}
	opDeleteRole = auth.Operation{
		Name:        "roles.delete",
		Roles:       []string{auth.RoleSuperAdmin},
		Permissions: []string{auth.PermRolesDelete},
	}
)

type createRoleRequest struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Permissions []string `json:"permissions"`
}

type updateRoleRequest struct {
	Name        *string   `json:"name"`
	Permissions *[]string `json:"permissions"`
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.authorize(w, r, opFindRoles) {
			return
		}
		roles, err := a.svc.FindRoles(r.Context())
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, roles)

	case http.MethodPost:
		if !a.authorize(w, r, opCreateRole) {
			return
		}
		var req createRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.svc.CreateRole(r.Context(), auth.CreateRoleInput{
			Name:        req.Name,
			Type:        auth.RoleType(strings.ToUpper(strings.TrimSpace(req.Type))),
			Permissions: req.Permissions,
		})
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/v1/roles/%s", role.ID))
		writeJSON(w, http.StatusCreated, role)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/roles/"), "/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	roleID := path

	switch r.Method {
	case http.MethodPatch:
		if !a.authorize(w, r, opUpdateRole) {
			return
		}
		var req updateRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.svc.UpdateRole(r.Context(), roleID, auth.UpdateRoleInput{
			Name:        req.Name,
			Permissions: req.Permissions,
		})
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)

	case http.MethodDelete:
		if !a.authorize(w, r, opDeleteRole) {
			return
		}
		role, err := a.svc.DeleteRole(r.Context(), roleID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)

	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
	}
}
