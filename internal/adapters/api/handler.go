package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/poyrazK/keygate/internal/core/domain"
	"github.com/poyrazK/keygate/internal/core/ports"
	"github.com/poyrazK/keygate/internal/infrastructure/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIHandler handles HTTP requests for license activation, verification and
// administration.
type APIHandler struct {
	svc    ports.LicenseService
	repo   ports.LicenseRepository
	logger *slog.Logger
}

// NewAPIHandler creates and returns a new APIHandler instance.
func NewAPIHandler(svc ports.LicenseService, repo ports.LicenseRepository, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{svc: svc, repo: repo, logger: logger}
}

// RegisterRoutes registers the API routes with the provided ServeMux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux, rl *RateLimiter) {
	limit := RateLimitMiddleware(rl)

	// Public routes; the license key itself is the credential.
	mux.Handle("POST /licenses/activate", limit(instrument("activate", http.HandlerFunc(h.Activate))))
	mux.Handle("POST /licenses/verify", limit(instrument("verify", http.HandlerFunc(h.Verify))))
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /metrics", h.Metrics)

	// Management routes.
	auth := AuthMiddleware(h.repo)
	admin := RequireRole(domain.RoleAdmin)
	reader := RequireRole(domain.RoleAdmin, domain.RoleReader)

	mux.Handle("POST /admin/licenses", auth(admin(http.HandlerFunc(h.CreateLicense))))
	mux.Handle("GET /admin/licenses", auth(reader(http.HandlerFunc(h.ListLicenses))))
	mux.Handle("PATCH /admin/licenses/{id}", auth(admin(http.HandlerFunc(h.PatchLicense))))
	mux.Handle("DELETE /admin/licenses/{id}", auth(admin(http.HandlerFunc(h.UnbindLicense))))
	mux.Handle("GET /admin/piracy", auth(reader(http.HandlerFunc(h.PiracyReport))))
	mux.Handle("GET /admin/stats", auth(reader(http.HandlerFunc(h.Stats))))
}

type clientPayload struct {
	LicenseKey string `json:"licenseKey"`
	Domain     string `json:"domain"`
	ServerHash string `json:"serverHash,omitempty"`
}

type activateResponse struct {
	Success bool                      `json:"success"`
	Error   string                    `json:"error,omitempty"`
	License *domain.ActivationSummary `json:"license,omitempty"`
}

type verifyResponse struct {
	Valid       bool               `json:"valid"`
	Error       string             `json:"error,omitempty"`
	PackageType domain.PackageType `json:"package_type,omitempty"`
	ExpiresAt   *time.Time         `json:"expires_at,omitempty"`
}

// Activate handles the one-time domain binding of a license.
func (h *APIHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var body clientPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, activateResponse{Success: false, Error: "invalid request body"})
		return
	}
	if body.LicenseKey == "" || body.Domain == "" {
		writeJSON(w, http.StatusBadRequest, activateResponse{Success: false, Error: "licenseKey and domain are required"})
		return
	}
	if err := domain.ValidateDomainName(body.Domain); err != nil {
		writeJSON(w, http.StatusBadRequest, activateResponse{Success: false, Error: "invalid domain: " + err.Error()})
		return
	}

	req := domain.ClientRequest{
		Key:        body.LicenseKey,
		Domain:     body.Domain,
		ServerHash: body.ServerHash,
		ClientIP:   clientIP(r),
		UserAgent:  userAgent(r),
	}

	summary, err := h.svc.Activate(r.Context(), req)
	if err != nil {
		status, msg := activateFailure(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("activation failed", "domain", body.Domain, "error", err)
		}
		writeJSON(w, status, activateResponse{Success: false, Error: msg})
		return
	}

	writeJSON(w, http.StatusOK, activateResponse{Success: true, License: summary})
}

// Verify handles the periodic post-activation check. Business failures come
// back as 200 with valid=false so clients can distinguish "your license is
// bad" from "the server is down".
func (h *APIHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var body clientPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, verifyResponse{Valid: false, Error: "invalid request body"})
		return
	}
	if body.LicenseKey == "" || body.Domain == "" {
		writeJSON(w, http.StatusBadRequest, verifyResponse{Valid: false, Error: "missing parameters"})
		return
	}

	req := domain.ClientRequest{
		Key:        body.LicenseKey,
		Domain:     body.Domain,
		ServerHash: body.ServerHash,
		ClientIP:   clientIP(r),
		UserAgent:  userAgent(r),
	}

	result, err := h.svc.Verify(r.Context(), req)
	if err != nil {
		if msg, ok := verifyFailure(err); ok {
			writeJSON(w, http.StatusOK, verifyResponse{Valid: false, Error: msg})
			return
		}
		h.logger.Error("verification failed", "domain", body.Domain, "error", err)
		writeJSON(w, http.StatusInternalServerError, verifyResponse{Valid: false, Error: "server error"})
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		Valid:       true,
		PackageType: result.PackageType,
		ExpiresAt:   result.ExpiresAt,
	})
}

// Metrics handles Prometheus metrics scraping requests.
func (h *APIHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// HealthCheck handles health check requests.
func (h *APIHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "UP"
	details := make(map[string]string)
	checks := h.svc.HealthCheck(r.Context())

	for name, checkErr := range checks {
		if checkErr != nil {
			status = "DEGRADED"
			details[name] = checkErr.Error()
		} else {
			details[name] = "OK"
		}
	}

	code := http.StatusOK
	if status == "DEGRADED" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "details": details})
}

func (h *APIHandler) CreateLicense(w http.ResponseWriter, r *http.Request) {
	var input domain.CreateLicenseInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if input.HolderName == "" || input.PackageType == "" {
		http.Error(w, "package_type and holder_name are required", http.StatusBadRequest)
		return
	}
	if !domain.ValidPackageType(input.PackageType) {
		http.Error(w, "invalid package type", http.StatusBadRequest)
		return
	}

	lic, err := h.svc.CreateLicense(r.Context(), input)
	if err != nil {
		h.logger.Error("license creation failed", "error", err)
		http.Error(w, "failed to create license", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "license": lic})
}

func (h *APIHandler) ListLicenses(w http.ResponseWriter, r *http.Request) {
	licenses, err := h.svc.ListLicenses(r.Context())
	if err != nil {
		h.logger.Error("license listing failed", "error", err)
		http.Error(w, "failed to list licenses", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"licenses": licenses})
}

type patchPayload struct {
	PackageType *domain.PackageType `json:"package_type"`
	HolderName  *string             `json:"holder_name"`
	OfficeName  *string             `json:"office_name"`
	HolderEmail *string             `json:"holder_email"`
	HolderPhone *string             `json:"holder_phone"`
	Address     *string             `json:"address"`
	Notes       *string             `json:"notes"`
	IsActive    *bool               `json:"is_active"`
	ExpiresAt   json.RawMessage     `json:"expires_at"`
}

func (h *APIHandler) PatchLicense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body patchPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	patch := domain.LicensePatch{
		PackageType: body.PackageType,
		HolderName:  body.HolderName,
		OfficeName:  body.OfficeName,
		HolderEmail: body.HolderEmail,
		HolderPhone: body.HolderPhone,
		Address:     body.Address,
		Notes:       body.Notes,
		IsActive:    body.IsActive,
	}

	// expires_at distinguishes absent (untouched), null (cleared) and a
	// timestamp (set).
	if len(body.ExpiresAt) > 0 {
		if string(body.ExpiresAt) == "null" {
			patch.ClearExpiresAt = true
		} else {
			var ts time.Time
			if err := json.Unmarshal(body.ExpiresAt, &ts); err != nil {
				http.Error(w, "invalid expires_at: "+err.Error(), http.StatusBadRequest)
				return
			}
			patch.ExpiresAt = &ts
		}
	}

	lic, err := h.svc.PatchLicense(r.Context(), id, patch)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "license not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("license patch failed", "id", id, "error", err)
		http.Error(w, "failed to update license", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "license": lic})
}

// UnbindLicense clears the domain binding. DELETE on the license resource
// unbinds rather than deletes; licenses are never removed, only retired.
func (h *APIHandler) UnbindLicense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	lic, err := h.svc.UnbindLicense(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "license not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("license unbind failed", "id", id, "error", err)
		http.Error(w, "failed to unbind license", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "license": lic})
}

func (h *APIHandler) PiracyReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.PiracyReport(r.Context())
	if err != nil {
		h.logger.Error("piracy report failed", "error", err)
		http.Error(w, "failed to build piracy report", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *APIHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		h.logger.Error("stats query failed", "error", err)
		http.Error(w, "failed to compute stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// activateFailure maps engine errors to an HTTP status and a client-facing
// message. Internal causes never leak into the response body.
func activateFailure(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "license key not found"
	case errors.Is(err, domain.ErrDeactivated):
		return http.StatusForbidden, "license key is no longer active"
	case errors.Is(err, domain.ErrExpired):
		return http.StatusForbidden, "license key has expired"
	case errors.Is(err, domain.ErrDomainConflict):
		return http.StatusForbidden, "license key is already bound to another domain; this attempt has been logged"
	}
	return http.StatusInternalServerError, "internal server error"
}

func verifyFailure(err error) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "license not found", true
	case errors.Is(err, domain.ErrDeactivated):
		return "license not active", true
	case errors.Is(err, domain.ErrExpired):
		return "license expired", true
	case errors.Is(err, domain.ErrDomainConflict):
		return "domain mismatch", true
	}
	return "", false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

// instrument records request duration per endpoint.
func instrument(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		metrics.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	})
}
