package gate

import (
	"net/http"

	"github.com/promodash/dash-front/internal/config"
	"github.com/promodash/dash-front/internal/log"
	"github.com/promodash/dash-front/internal/session"
)

// Gate enforces route access rules on page navigation: unauthenticated
// visitors are confined to the public entry pages, and authenticated ones
// are steered to the landing page for their role. The session check is
// purely local (cookie/record presence); the gate never calls the identity
// provider.
type Gate struct {
	sessions *session.Manager
	excluded *PathMatcher
	public   map[string]struct{}

	publicEntry         string
	collaboratorRole    string
	collaboratorLanding string
	adminLanding        string
}

// New creates a gate from the routes configuration
func New(sessions *session.Manager, routes config.RoutesConfig) *Gate {
	public := make(map[string]struct{}, len(routes.PublicPaths))
	for _, p := range routes.PublicPaths {
		public[normalizePath(p)] = struct{}{}
	}

	return &Gate{
		sessions:            sessions,
		excluded:            NewPathMatcher(routes.ExcludePatterns),
		public:              public,
		publicEntry:         routes.PublicEntry,
		collaboratorRole:    routes.CollaboratorRole,
		collaboratorLanding: routes.CollaboratorLanding,
		adminLanding:        routes.AdminLanding,
	}
}

// Middleware applies the gate's decision table to every request:
//
//	excluded path                  -> pass through untouched
//	root path                      -> redirect (role landing or public entry)
//	public path, no session        -> pass through
//	public path, session           -> redirect to role landing
//	protected path, no session     -> redirect to public entry
//	protected path, session        -> pass through
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.excluded.Matches(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		bundle, err := g.sessions.Bind(w, r).Read(r.Context())
		hasSession := err == nil

		reqPath := normalizePath(r.URL.Path)

		// The root path never renders; it always forwards to the right place.
		if reqPath == "/" {
			if hasSession {
				g.redirect(w, r, g.landingFor(bundle.Role))
			} else {
				g.redirect(w, r, g.publicEntry)
			}
			return
		}

		_, isPublic := g.public[reqPath]

		switch {
		case isPublic && hasSession:
			g.redirect(w, r, g.landingFor(bundle.Role))
		case !isPublic && !hasSession:
			g.redirect(w, r, g.publicEntry)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// landingFor maps a session role to its landing page
func (g *Gate) landingFor(role session.Role) string {
	if string(role) == g.collaboratorRole {
		return g.collaboratorLanding
	}
	return g.adminLanding
}

func (g *Gate) redirect(w http.ResponseWriter, r *http.Request, target string) {
	log.LogDebugWithFields("gate", "Redirecting request", map[string]any{
		"path":   r.URL.Path,
		"target": target,
	})
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}
