package rbac

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/communityhub/pkg/httputil"
	"github.com/platinummonkey/communityhub/pkg/middleware"
	"github.com/platinummonkey/communityhub/pkg/observability"
	"github.com/platinummonkey/communityhub/pkg/permissions"
)

// Handlers serves permission group management and effective permission
// lookups under /orgs/{slug}
type Handlers struct {
	manager  *Manager
	resolver Resolver
	perms    *PermissionMiddleware
}

// NewHandlers creates new RBAC handlers
func NewHandlers(manager *Manager, resolver Resolver) *Handlers {
	return &Handlers{
		manager:  manager,
		resolver: resolver,
		perms:    NewPermissionMiddleware(resolver),
	}
}

// RegisterAdminRoutes registers group management on a router already
// protected by the admin guard
func (h *Handlers) RegisterAdminRoutes(router *mux.Router) {
	read := h.perms.RequirePermission(permissions.PermissionGroupsRead)
	manage := h.perms.RequirePermission(permissions.PermissionGroupsManage)

	router.Handle("/permission-groups", read(http.HandlerFunc(h.ListGroups))).Methods(http.MethodGet)
	router.Handle("/permission-groups", manage(http.HandlerFunc(h.CreateGroup))).Methods(http.MethodPost)
	router.Handle("/permission-groups/system", manage(http.HandlerFunc(h.SeedSystemGroups))).Methods(http.MethodPost)
	router.Handle("/permission-groups/{group_id}", read(http.HandlerFunc(h.GetGroup))).Methods(http.MethodGet)
	router.Handle("/permission-groups/{group_id}", manage(http.HandlerFunc(h.UpdateGroup))).Methods(http.MethodPut)
	router.Handle("/permission-groups/{group_id}", manage(http.HandlerFunc(h.DeleteGroup))).Methods(http.MethodDelete)

	router.Handle("/members/{user_id}/permission-groups/{group_id}", manage(http.HandlerFunc(h.AssignGroup))).Methods(http.MethodPut)
	router.Handle("/members/{user_id}/permission-groups/{group_id}", manage(http.HandlerFunc(h.UnassignGroup))).Methods(http.MethodDelete)
}

// RegisterPortalRoutes registers member-facing routes on a router already
// protected by the portal guard
func (h *Handlers) RegisterPortalRoutes(router *mux.Router) {
	router.HandleFunc("/permissions", h.GetMyPermissions).Methods(http.MethodGet)
}

// GroupRequest is the body of create and update calls
type GroupRequest struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

func (req GroupRequest) toGroup(organizationID string) (*PermissionGroup, error) {
	keys := make([]permissions.Key, 0, len(req.Permissions))
	for _, s := range req.Permissions {
		k, err := permissions.Parse(s)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return &PermissionGroup{
		OrganizationID: organizationID,
		Name:           req.Name,
		DisplayName:    req.DisplayName,
		Description:    req.Description,
		Permissions:    keys,
	}, nil
}

// PermissionsResponse lists effective permission keys
type PermissionsResponse struct {
	OrganizationID string            `json:"organization_id"`
	Permissions    []permissions.Key `json:"permissions"`
}

// GetMyPermissions returns the caller's effective permissions in the organization
func (h *Handlers) GetMyPermissions(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrganization(r)
	if org == nil {
		httputil.WriteNotFound(w, "organization not found")
		return
	}

	set, err := h.resolver.ResolvePermissions(r.Context(), middleware.GetIdentity(r), org.ID)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Failed to resolve permissions")
		httputil.WriteServiceUnavailable(w, "permissions unavailable")
		return
	}

	_ = httputil.WriteSuccess(w, PermissionsResponse{
		OrganizationID: org.ID,
		Permissions:    set.Sorted(),
	})
}

// ListGroups lists the organization's groups
func (h *Handlers) ListGroups(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrganization(r)

	groups, err := h.manager.ListGroups(r.Context(), org.ID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, groups)
}

// GetGroup returns one group
func (h *Handlers) GetGroup(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrganization(r)
	groupID, ok := httputil.PathVarOrError(w, r, "group_id")
	if !ok {
		return
	}

	group, err := h.manager.GetGroup(r.Context(), org.ID, groupID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, group)
}

// CreateGroup creates a custom group
func (h *Handlers) CreateGroup(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrganization(r)

	var req GroupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	group, err := req.toGroup(org.ID)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.manager.CreateGroup(r.Context(), group); err != nil {
		writeStoreError(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, group)
}

// UpdateGroup replaces a custom group
func (h *Handlers) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrganization(r)
	groupID, ok := httputil.PathVarOrError(w, r, "group_id")
	if !ok {
		return
	}

	var req GroupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	group, err := req.toGroup(org.ID)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	group.ID = groupID

	if err := h.manager.UpdateGroup(r.Context(), group); err != nil {
		writeStoreError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, group)
}

// DeleteGroup deletes a custom group
func (h *Handlers) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrganization(r)
	groupID, ok := httputil.PathVarOrError(w, r, "group_id")
	if !ok {
		return
	}

	if err := h.manager.DeleteGroup(r.Context(), org.ID, groupID); err != nil {
		writeStoreError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// SeedSystemGroups installs the system templates into the organization
func (h *Handlers) SeedSystemGroups(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrganization(r)

	if err := h.manager.SeedSystemGroups(r.Context(), org.ID); err != nil {
		writeStoreError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// AssignGroup assigns a group to a member
func (h *Handlers) AssignGroup(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrganization(r)
	userID, ok := httputil.PathVarOrError(w, r, "user_id")
	if !ok {
		return
	}
	groupID, ok := httputil.PathVarOrError(w, r, "group_id")
	if !ok {
		return
	}

	if err := h.manager.AssignGroup(r.Context(), org.ID, userID, groupID); err != nil {
		writeStoreError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// UnassignGroup removes a group from a member
func (h *Handlers) UnassignGroup(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrganization(r)
	userID, ok := httputil.PathVarOrError(w, r, "user_id")
	if !ok {
		return
	}
	groupID, ok := httputil.PathVarOrError(w, r, "group_id")
	if !ok {
		return
	}

	if err := h.manager.UnassignGroup(r.Context(), org.ID, userID, groupID); err != nil {
		writeStoreError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrGroupNotFound), errors.Is(err, ErrAssignmentNotFound), errors.Is(err, ErrNotMember):
		httputil.WriteNotFound(w, err.Error())
	case errors.Is(err, ErrGroupNameTaken):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, ErrSystemGroupImmutable):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, ErrInvalidGroup), errors.Is(err, ErrCrossOrganizationAssignment):
		httputil.WriteBadRequest(w, err.Error())
	default:
		observability.FromContext(r.Context()).WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("Permission group operation failed")
		httputil.WriteInternalError(w)
	}
}
