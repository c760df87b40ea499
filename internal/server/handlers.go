package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/promodash/dash-front/internal/apicall"
	"github.com/promodash/dash-front/internal/business"
	"github.com/promodash/dash-front/internal/identity"
	jsonwriter "github.com/promodash/dash-front/internal/json"
	"github.com/promodash/dash-front/internal/log"
	"github.com/promodash/dash-front/internal/session"
)

// Handlers provides the dashboard HTTP handlers with dependency injection
type Handlers struct {
	sessions  *session.Manager
	identity  *identity.Client
	business  *business.Client
	executor  *apicall.Executor
	version   string
	startTime time.Time
}

// NewHandlers creates new dashboard handlers with dependency injection
func NewHandlers(
	sessions *session.Manager,
	identityClient *identity.Client,
	businessClient *business.Client,
	executor *apicall.Executor,
	version string,
) *Handlers {
	return &Handlers{
		sessions:  sessions,
		identity:  identityClient,
		business:  businessClient,
		executor:  executor,
		version:   version,
		startTime: time.Now(),
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginHandler exchanges credentials for a session. On success the response
// carries the role so the client can route to the right landing page; the
// tokens themselves never leave the server unsigned.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonwriter.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonwriter.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		jsonwriter.WriteBadRequest(w, "Username and password are required")
		return
	}

	bundle, err := h.identity.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		log.LogWarnWithFields("handlers", "Login rejected", map[string]any{
			"username": req.Username,
			"error":    err.Error(),
		})
		jsonwriter.WriteUnauthorized(w, "Invalid credentials")
		return
	}

	if err := h.sessions.Bind(w, r).Create(r.Context(), bundle); err != nil {
		log.LogErrorWithFields("handlers", "Failed to create session", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to create session")
		return
	}

	_ = jsonwriter.Write(w, map[string]any{
		"role": bundle.Role,
	})
}

// LogoutHandler tears the session down. Always succeeds, even when there was
// nothing to tear down.
func (h *Handlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonwriter.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	if err := h.sessions.Bind(w, r).Delete(r.Context()); err != nil {
		log.LogWarnWithFields("handlers", "Session delete failed during logout", map[string]any{
			"error": err.Error(),
		})
	}

	_ = jsonwriter.Write(w, map[string]any{"status": "ok"})
}

// CajerosHandler lists the business's cashiers
func (h *Handlers) CajerosHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonwriter.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}
	h.execute(w, r, h.business.Get("/cajeros/"))
}

// PromocionesHandler lists promotions or creates one
func (h *Handlers) PromocionesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.execute(w, r, h.business.Get("/promociones/"))
	case http.MethodPost:
		var body json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			jsonwriter.WriteBadRequest(w, "Invalid request body")
			return
		}
		h.execute(w, r, h.business.Post("/promociones/", body))
	default:
		jsonwriter.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	}
}

// SolicitudesHandler lists pending collaborator requests
func (h *Handlers) SolicitudesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonwriter.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}
	h.execute(w, r, h.business.Get("/solicitudes/"))
}

// execute runs an authenticated call and maps terminal outcomes to HTTP.
// Successful payloads pass through untouched.
func (h *Handlers) execute(w http.ResponseWriter, r *http.Request, call apicall.CallFunc) {
	payload, err := h.executor.Do(r.Context(), h.sessions.Bind(w, r), call)
	if err != nil {
		switch {
		case errors.Is(err, apicall.ErrSessionInvalid):
			jsonwriter.WriteUnauthorized(w, "Session is invalid or expired")
		case errors.Is(err, apicall.ErrRefreshFailed):
			// The refresh token is dead too; the client has to log in again
			jsonwriter.WriteUnauthorized(w, "Session could not be renewed")
		default:
			jsonwriter.WriteBadGateway(w, "Upstream request failed")
		}
		return
	}

	jsonwriter.WriteRaw(w, payload)
}

// StatusHandler reports operational state for the admin endpoint
func (h *Handlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonwriter.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	_ = jsonwriter.Write(w, map[string]any{
		"version":        h.version,
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
		"session_mode":   string(h.sessions.Mode()),
		"session_window": h.sessions.Window().String(),
		"log_level":      log.GetLogLevel(),
	})
}
