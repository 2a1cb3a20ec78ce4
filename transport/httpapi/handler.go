package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	devAuth "github.com/MrEthical07/devAuth"
	"github.com/MrEthical07/devAuth/middleware"
)

const maxBodyBytes = 1 << 16

// Service is the engine surface served over HTTP. *devAuth.Engine implements it.
type Service interface {
	Register(ctx context.Context, req devAuth.RegisterRequest) (*devAuth.User, error)
	Login(ctx context.Context, req devAuth.LoginRequest) (*devAuth.LoginResult, error)
	ValidateToken(ctx context.Context, token string) (*devAuth.Session, error)
	TrustDevice(ctx context.Context, userID, deviceID string) error
	RevokeDevice(ctx context.Context, userID, deviceID string) error
	Logout(ctx context.Context, userID, deviceID string) error
	LogoutAllDevices(ctx context.Context, userID string) error
	ListDevices(ctx context.Context, userID string) ([]devAuth.Device, error)
	Health(ctx context.Context) devAuth.HealthStatus
}

// Handler holds the HTTP handlers.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// NewHandler returns a Handler. A nil logger uses slog.Default.
func NewHandler(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username"`
	Email              string    `json:"email"`
	Role               string    `json:"role"`
	MustChangePassword bool      `json:"must_change_password"`
	CreatedAt          time.Time `json:"created_at"`
}

type deviceRequest struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"device_name"`
	Type     string `json:"device_type"`
	OS       string `json:"os"`
	Browser  string `json:"browser"`
}

type loginRequest struct {
	Username string        `json:"username"`
	Password string        `json:"password"`
	Device   deviceRequest `json:"device"`
}

type loginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Device    deviceResponse `json:"device"`
}

type deviceResponse struct {
	DeviceID    string    `json:"device_id"`
	Name        string    `json:"device_name,omitempty"`
	Type        string    `json:"device_type,omitempty"`
	OS          string    `json:"os,omitempty"`
	Browser     string    `json:"browser,omitempty"`
	IPAddress   string    `json:"ip_address,omitempty"`
	IsActive    bool      `json:"is_active"`
	IsTrusted   bool      `json:"is_trusted"`
	LastLoginAt time.Time `json:"last_login_at"`
	CreatedAt   time.Time `json:"created_at"`
}

type sessionResponse struct {
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	DeviceID    string   `json:"device_id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	ExpiresAt   int64    `json:"expires_at"`
}

type healthResponse struct {
	Status         string `json:"status"`
	Cache          bool   `json:"cache"`
	CacheLatencyMS int64  `json:"cache_latency_ms"`
	Store          bool   `json:"store"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return false
	}
	return true
}

// Register handles POST /v1/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := h.service.Register(middleware.RequestContext(r), devAuth.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		Role:               u.Role,
		MustChangePassword: u.MustChangePassword,
		CreatedAt:          u.CreatedAt,
	})
}

// Login handles POST /v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.service.Login(middleware.RequestContext(r), devAuth.LoginRequest{
		Username: req.Username,
		Password: req.Password,
		Device: devAuth.DeviceInfo{
			DeviceID: req.Device.DeviceID,
			Name:     req.Device.Name,
			Type:     req.Device.Type,
			OS:       req.Device.OS,
			Browser:  req.Device.Browser,
		},
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		Device:    toDeviceResponse(res.Device),
	})
}

// Session handles GET /v1/auth/session.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		UserID:      sess.UserID,
		Username:    sess.Username,
		DeviceID:    sess.DeviceID,
		Roles:       sess.Roles,
		Permissions: sess.Permissions,
		ExpiresAt:   sess.ExpiresAt,
	})
}

// Logout handles POST /v1/auth/logout for the calling device.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	if err := h.service.Logout(middleware.RequestContext(r), sess.UserID, sess.DeviceID); err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll handles POST /v1/auth/logout-all.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	if err := h.service.LogoutAllDevices(middleware.RequestContext(r), sess.UserID); err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDevices handles GET /v1/devices.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	devices, err := h.service.ListDevices(r.Context(), sess.UserID)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	out := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, toDeviceResponse(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": out})
}

// TrustDevice handles POST /v1/devices/{deviceID}/trust.
func (h *Handler) TrustDevice(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	if err := h.service.TrustDevice(middleware.RequestContext(r), sess.UserID, chi.URLParam(r, "deviceID")); err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeDevice handles DELETE /v1/devices/{deviceID}.
func (h *Handler) RevokeDevice(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	if err := h.service.RevokeDevice(middleware.RequestContext(r), sess.UserID, chi.URLParam(r, "deviceID")); err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /healthz. Either backend down answers 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.service.Health(r.Context())
	resp := healthResponse{
		Status:         "ok",
		Cache:          st.CacheAvailable,
		CacheLatencyMS: st.CacheLatency.Milliseconds(),
		Store:          st.StoreAvailable,
	}
	status := http.StatusOK
	if !st.CacheAvailable || !st.StoreAvailable {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func toDeviceResponse(d devAuth.Device) deviceResponse {
	return deviceResponse{
		DeviceID:    d.DeviceID,
		Name:        d.Name,
		Type:        d.Type,
		OS:          d.OS,
		Browser:     d.Browser,
		IPAddress:   d.IPAddress,
		IsActive:    d.IsActive,
		IsTrusted:   d.IsTrusted,
		LastLoginAt: d.LastLoginAt,
		CreatedAt:   d.CreatedAt,
	}
}
