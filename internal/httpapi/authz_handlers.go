package httpapi

import (
	"net/http"
	"strings"

	"ratebench.io/internal/auth"
	"ratebench.io/internal/authz"
	"ratebench.io/internal/events"
)

type entityRef struct {
	Type                string `json:"type"`
	ID                  string `json:"id"`
	OwnerOrganizationID string `json:"owner_organization_id,omitempty"`
}

type checkRequest struct {
	Key    string     `json:"key"`
	Entity *entityRef `json:"entity,omitempty"`
}

type checkBatchRequest struct {
	Keys   []string   `json:"keys"`
	Entity *entityRef `json:"entity,omitempty"`
}

type checkResponse struct {
	Allowed bool     `json:"allowed"`
	Key     string   `json:"key,omitempty"`
	Keys    []string `json:"keys,omitempty"`
}

func (a *API) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req checkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	key, err := authz.ParseKey(req.Key)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	opts := checkOptionsFor(req.Entity)
	allowed := a.resolver.HasPermission(r.Context(), key, opts...)
	a.publishDecision(r, key.String(), allowed)
	writeJSON(w, http.StatusOK, checkResponse{Allowed: allowed, Key: key.String()})
}

func (a *API) handleCheckAny(w http.ResponseWriter, r *http.Request) {
	a.handleBatchCheck(w, r, func(keys []authz.Key, opts []authz.CheckOption) bool {
		return a.resolver.HasAnyPermission(r.Context(), keys, opts...)
	})
}

func (a *API) handleCheckAll(w http.ResponseWriter, r *http.Request) {
	a.handleBatchCheck(w, r, func(keys []authz.Key, opts []authz.CheckOption) bool {
		return a.resolver.HasAllPermissions(r.Context(), keys, opts...)
	})
}

func (a *API) handleBatchCheck(w http.ResponseWriter, r *http.Request, eval func([]authz.Key, []authz.CheckOption) bool) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req checkBatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	keys := make([]authz.Key, 0, len(req.Keys))
	canonical := make([]string, 0, len(req.Keys))
	for _, raw := range req.Keys {
		key, err := authz.ParseKey(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		keys = append(keys, key)
		canonical = append(canonical, key.String())
	}
	allowed := eval(keys, checkOptionsFor(req.Entity))
	a.publishDecision(r, strings.Join(canonical, ","), allowed)
	writeJSON(w, http.StatusOK, checkResponse{Allowed: allowed, Keys: canonical})
}

func checkOptionsFor(ref *entityRef) []authz.CheckOption {
	if ref == nil {
		return nil
	}
	return []authz.CheckOption{authz.WithEntity(authz.Entity{
		Type:                ref.Type,
		ID:                  ref.ID,
		OwnerOrganizationID: ref.OwnerOrganizationID,
	})}
}

func (a *API) publishDecision(r *http.Request, key string, allowed bool) {
	if a.stream == nil {
		return
	}
	actor := auth.ActorFromContext(r.Context())
	if actor == nil {
		return
	}
	a.stream.Publish(events.Decision(actor.ID, actor.OrganizationID, key, allowed))
}
