package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/thenishantgiri/CampusCore/internal/auth"
)

var (
	opCreatePermission = auth.Operation{
		Name:        "permissions.create",
		Roles:       adminRoles,
		Permissions: []string{auth.PermPermissionsCreate},
	}
	opFindPermissions = auth.Operation{
		Name:        "permissions.list",
		Roles:       adminRoles,
		Permissions: []string{auth.PermPermissionsRead},
	}
	opDeletePermission = auth.Operation{
		Name:        "permissions.delete",
		Roles:       []string{auth.RoleSuperAdmin},
		Permissions: []string{auth.PermPermissionsDelete},
	}
)

type createPermissionRequest struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.authorize(w, r, opFindPermissions) {
			return
		}
		perms, err := a.svc.FindPermissions(r.Context())
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, perms)

	case http.MethodPost:
		if !a.authorize(w, r, opCreatePermission) {
			return
		}
		var req createPermissionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		perm, err := a.svc.CreatePermission(r.Context(), req.Key, req.Label)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/v1/permissions/%s", perm.ID))
		writeJSON(w, http.StatusCreated, perm)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePermissionResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/permissions/"), "/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if !a.authorize(w, r, opDeletePermission) {
		return
	}
	perm, err := a.svc.DeletePermission(r.Context(), path)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, perm)
}
