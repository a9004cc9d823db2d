package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"ratebench.io/internal/audit"
	"ratebench.io/internal/auth"
	"ratebench.io/internal/catalog"
	"ratebench.io/internal/directory"
	"ratebench.io/internal/events"
	"ratebench.io/internal/ids"
)

type createOrganizationRequest struct {
	Name     string         `json:"name"`
	Kind     string         `json:"kind"`
	Settings map[string]any `json:"settings"`
}

type createActorRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateRolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

type updateActorRoleRequest struct {
	Role string `json:"role"`
}

func (a *API) handleOrganizations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if !a.ensurePermission(w, r, catalog.PermManageOrganizations) {
			return
		}
		var req createOrganizationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		org, err := a.dir.CreateOrganization(r.Context(), req.Name, req.Kind, req.Settings)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		a.audit(r.Context(), "directory.organization.create", "organization", org.ID, map[string]string{
			"name": org.Name,
			"kind": org.Kind,
		})
		a.publishDirectoryChange(org.ID, "organizations")
		w.Header().Set("Location", fmt.Sprintf("/v1/organizations/%s", org.ID))
		writeJSON(w, http.StatusCreated, org)
	case http.MethodGet:
		if !a.ensurePermission(w, r, catalog.PermManageOrganizations) {
			return
		}
		orgs, err := a.dir.ListOrganizations(r.Context())
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
	default:
		methodNotAllowed(w, r, "GET, POST")
	}
}

func (a *API) handleOrganizationScoped(w http.ResponseWriter, r *http.Request) {
	parts := splitResourcePath(r, "/v1/organizations/")
	if len(parts) == 0 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	orgID := parts[0]
	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		org, err := a.dir.GetOrganization(r.Context(), orgID)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, org)
	case len(parts) == 2 && parts[1] == "actors":
		a.handleOrganizationActors(w, r, orgID)
	case len(parts) == 2 && parts[1] == "roles":
		a.handleOrganizationRoles(w, r, orgID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleOrganizationActors(w http.ResponseWriter, r *http.Request, orgID string) {
	switch r.Method {
	case http.MethodPost:
		if !a.ensurePermission(w, r, catalog.PermManageActors) {
			return
		}
		var req createActorRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if len(req.Password) < 8 {
			writeError(w, r, http.StatusBadRequest, "password must be at least 8 characters")
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "password hashing failed")
			return
		}
		actor, err := a.dir.CreateActor(r.Context(), orgID, req.Email, hash, req.Role)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		a.audit(r.Context(), "directory.actor.create", "actor", actor.ID, map[string]string{
			"organization_id": orgID,
			"email":           actor.Email,
			"role":            actor.Role,
		})
		a.publishDirectoryChange(orgID, "actors")
		w.Header().Set("Location", fmt.Sprintf("/v1/actors/%s", actor.ID))
		writeJSON(w, http.StatusCreated, actor)
	case http.MethodGet:
		if !a.ensurePermission(w, r, catalog.PermManageActors) {
			return
		}
		actors, err := a.dir.ListActors(r.Context(), orgID)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"actors": actors})
	default:
		methodNotAllowed(w, r, "GET, POST")
	}
}

func (a *API) handleOrganizationRoles(w http.ResponseWriter, r *http.Request, orgID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensurePermission(w, r, catalog.PermManageRoles) {
		return
	}
	var req createRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.dir.CreateRole(r.Context(), orgID, req.Name, req.Description)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	a.audit(r.Context(), "directory.role.create", "role", role.ID, map[string]string{
		"organization_id": orgID,
		"name":            role.Name,
	})
	a.publishDirectoryChange(orgID, "roles")
	w.Header().Set("Location", fmt.Sprintf("/v1/roles/%s", role.ID))
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) handleActorResource(w http.ResponseWriter, r *http.Request) {
	parts := splitResourcePath(r, "/v1/actors/")
	if len(parts) == 0 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	actorID := parts[0]
	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		if !a.ensurePermission(w, r, catalog.PermManageActors) {
			return
		}
		actor, err := a.dir.GetActor(r.Context(), actorID)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, actor)
	case len(parts) == 2 && parts[1] == "permissions":
		a.handleActorPermissions(w, r, actorID)
	case len(parts) == 2 && parts[1] == "assignments":
		a.handleActorAssignments(w, r, actorID)
	case len(parts) == 2 && parts[1] == "role":
		a.handleActorRole(w, r, actorID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// handleActorPermissions returns the effective permission set. Actors may
// inspect their own; anything else needs the manage grant.
func (a *API) handleActorPermissions(w http.ResponseWriter, r *http.Request, actorID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	session := auth.ActorFromContext(r.Context())
	if session == nil {
		writeError(w, r, http.StatusUnauthorized, "no active session")
		return
	}
	if session.ID != actorID && !a.ensurePermission(w, r, catalog.PermManageActors) {
		return
	}
	perms, err := a.dir.EffectivePermissions(r.Context(), actorID)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"actor_id":    actorID,
		"permissions": perms,
	})
}

func (a *API) handleActorAssignments(w http.ResponseWriter, r *http.Request, actorID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensurePermission(w, r, catalog.PermManageRoles) {
		return
	}
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RoleID) == "" {
		writeError(w, r, http.StatusBadRequest, "role_id is required")
		return
	}
	assignment, err := a.dir.AssignRole(r.Context(), actorID, req.RoleID)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	a.resolver.ResetCache()
	a.audit(r.Context(), "directory.actor.assign_role", "actor", actorID, map[string]string{
		"role_id": assignment.RoleID,
	})
	a.publishDirectoryChange(assignment.OrganizationID, "assignments")
	writeJSON(w, http.StatusCreated, assignment)
}

func (a *API) handleActorRole(w http.ResponseWriter, r *http.Request, actorID string) {
	if r.Method != http.MethodPut && r.Method != http.MethodPatch {
		methodNotAllowed(w, r, "PATCH, PUT")
		return
	}
	if !a.ensurePermission(w, r, catalog.PermManageActors) {
		return
	}
	var req updateActorRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actor, err := a.dir.UpdateActorRole(r.Context(), actorID, req.Role)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	a.resolver.ResetCache()
	a.audit(r.Context(), "directory.actor.update_role", "actor", actorID, map[string]string{
		"role": actor.Role,
	})
	a.publishDirectoryChange(actor.OrganizationID, "actors")
	writeJSON(w, http.StatusOK, actor)
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	parts := splitResourcePath(r, "/v1/roles/")
	if len(parts) != 2 || parts[1] != "permissions" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	roleID := parts[0]
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if !a.ensurePermission(w, r, catalog.PermManageRoles) {
		return
	}
	var req updateRolePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.dir.SetRolePermissions(r.Context(), roleID, req.Permissions); err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	a.resolver.ResetCache()
	a.audit(r.Context(), "directory.role.permissions.update", "role", roleID, map[string]string{
		"count": fmt.Sprintf("%d", len(req.Permissions)),
	})
	session := auth.OrgFromContext(r.Context())
	if session != nil {
		a.publishDirectoryChange(session.ID, "role_permissions")
	}
	w.WriteHeader(http.StatusNoContent)
}

// audit writes the structured log line and the durable audit_log row.
func (a *API) audit(ctx context.Context, action, resourceType, resourceID string, meta map[string]string) {
	fields := map[string]any{
		"resource_type": resourceType,
		"resource_id":   resourceID,
	}
	for k, v := range meta {
		fields[k] = v
	}
	_ = audit.LogEvent(ctx, action, fields)

	entry := &directory.AuditEntry{
		ID:           ids.New(),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     meta,
	}
	if actor := auth.ActorFromContext(ctx); actor != nil {
		entry.ActorID = actor.ID
		entry.OrgID = actor.OrganizationID
	}
	_ = a.dir.Store().AppendAudit(ctx, entry)
}

func (a *API) publishDirectoryChange(orgID, resource string) {
	if a.stream == nil {
		return
	}
	a.stream.Publish(events.DirectoryChange(orgID, resource))
}
