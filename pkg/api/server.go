package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/communityhub/pkg/audit"
	"github.com/platinummonkey/communityhub/pkg/auth"
	"github.com/platinummonkey/communityhub/pkg/guard"
	"github.com/platinummonkey/communityhub/pkg/httputil"
	"github.com/platinummonkey/communityhub/pkg/identity"
	"github.com/platinummonkey/communityhub/pkg/landing"
	"github.com/platinummonkey/communityhub/pkg/middleware"
	"github.com/platinummonkey/communityhub/pkg/observability"
	"github.com/platinummonkey/communityhub/pkg/permissions"
	"github.com/platinummonkey/communityhub/pkg/rbac"
)

// APIPrefix is the path prefix of every versioned route
const APIPrefix = "/api/v1"

// Dependencies are the collaborators the server routes requests to.
// Metrics and RateLimit are optional. The audit routes are served only when
// both Audit and Permissions are set.
type Dependencies struct {
	Sessions    auth.SessionStore
	Identities  identity.Provider
	Checker     *guard.Checker
	Groups      *rbac.Handlers
	Audit       *audit.Handlers
	Permissions rbac.Resolver
	RateLimit   *middleware.RateLimitMiddleware
	Metrics     *observability.Metrics
	Logger      logrus.FieldLogger
}

// Server represents our API server
type Server struct {
	router     *mux.Router
	handler    http.Handler
	logger     logrus.FieldLogger
	metrics    *observability.Metrics
	identities identity.Provider
	landing    *landing.Resolver
	authn      *middleware.AuthMiddleware
	guards     *middleware.GuardMiddleware
	rateLimit  *middleware.RateLimitMiddleware
	groups     *rbac.Handlers
	audit      *audit.Handlers
	perms      *rbac.PermissionMiddleware
}

// NewServer creates a new API server
func NewServer(deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	s := &Server{
		router:     mux.NewRouter(),
		logger:     logger,
		metrics:    deps.Metrics,
		identities: deps.Identities,
		landing:    landing.NewResolver(deps.Identities),
		authn:      middleware.NewAuthMiddleware(deps.Sessions, logger),
		guards:     middleware.NewGuardMiddleware(deps.Checker),
		rateLimit:  deps.RateLimit,
		groups:     deps.Groups,
	}
	if deps.Audit != nil && deps.Permissions != nil {
		s.audit = deps.Audit
		s.perms = rbac.NewPermissionMiddleware(deps.Permissions)
	}
	s.setupRoutes()

	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
	)(s.router)
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "route not found")
	})

	if s.metrics != nil {
		s.router.Use(s.metrics.HTTPMiddleware(routeTemplate))
	}
	s.router.Use(s.authn.Handler)
	if s.rateLimit != nil {
		s.router.Use(s.rateLimit.Handler)
	}

	api := s.router.PathPrefix(APIPrefix).Subrouter()

	api.HandleFunc("/me/landing", s.getLanding).Methods(http.MethodGet)
	api.HandleFunc("/me/identity", s.getIdentity).Methods(http.MethodGet)

	api.HandleFunc("/platform/access", s.accessHandler(guard.PlatformPolicy)).Methods(http.MethodGet)
	api.HandleFunc("/orgs/{slug}/admin/access", s.accessHandler(guard.AdminPolicy)).Methods(http.MethodGet)
	api.HandleFunc("/orgs/{slug}/portal/access", s.accessHandler(guard.PortalPolicy)).Methods(http.MethodGet)

	if s.groups == nil && s.audit == nil {
		return
	}

	// Both subrouters share the tenant prefix; a path unknown to the
	// admin routes falls through to the portal routes.
	admin := api.PathPrefix("/orgs/{slug}").Subrouter()
	admin.Use(s.guards.Require(guard.AdminPolicy))
	if s.groups != nil {
		s.groups.RegisterAdminRoutes(admin)
	}
	if s.audit != nil {
		s.audit.RegisterRoutes(admin, s.perms.RequirePermission(permissions.SettingsRead))
	}

	if s.groups != nil {
		portal := api.PathPrefix("/orgs/{slug}").Subrouter()
		portal.Use(s.guards.Require(guard.PortalPolicy))
		s.groups.RegisterPortalRoutes(portal)
	}
}

// routeTemplate labels metrics with the matched route instead of the raw
// path so tenant slugs do not explode label cardinality
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// Router returns the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
