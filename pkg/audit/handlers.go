package audit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/communityhub/pkg/httputil"
	"github.com/platinummonkey/communityhub/pkg/middleware"
	"github.com/platinummonkey/communityhub/pkg/observability"
)

// Searcher reads the audit trail
type Searcher interface {
	Search(ctx context.Context, filter SearchFilter) ([]Event, error)
}

// Handlers serves the audit trail of one organization
type Handlers struct {
	store Searcher
}

// NewHandlers creates new audit handlers
func NewHandlers(store Searcher) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers the audit routes on a router already protected by
// the admin guard. protect adds any further check, such as a permission.
func (h *Handlers) RegisterRoutes(router *mux.Router, protect func(http.Handler) http.Handler) {
	router.Handle("/audit-events", protect(http.HandlerFunc(h.ListEvents))).Methods(http.MethodGet)
}

// EventsResponse is a page of audit events
type EventsResponse struct {
	Events []Event `json:"events"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// ListEvents handles GET /audit-events?type=&actor=&since=&limit=&offset=
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrganization(r)
	if org == nil {
		httputil.WriteNotFound(w, "organization not found")
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	filter.OrganizationID = org.ID
	filter = filter.normalized()

	events, err := h.store.Search(r.Context(), filter)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Failed to search audit events")
		httputil.WriteInternalError(w)
		return
	}

	_ = httputil.WriteSuccess(w, EventsResponse{
		Events: events,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

type filterError string

func (e filterError) Error() string { return string(e) }

func parseFilter(r *http.Request) (SearchFilter, error) {
	q := r.URL.Query()
	filter := SearchFilter{ActorID: q.Get("actor")}

	for _, t := range q["type"] {
		filter.EventTypes = append(filter.EventTypes, EventType(t))
	}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, filterError("since must be an RFC 3339 timestamp")
		}
		filter.Since = &since
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, filterError("limit must be a non-negative integer")
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, filterError("offset must be a non-negative integer")
		}
		filter.Offset = n
	}
	return filter, nil
}
