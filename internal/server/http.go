package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/onvifdiscovery/internal/logging"
	"github.com/muurk/onvifdiscovery/internal/version"
	"github.com/muurk/onvifdiscovery/internal/wsdiscovery"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

// parseTimeout reads the timeout query parameter in whole seconds.
// Missing means fallback; values above max are capped.
func parseTimeout(r *http.Request, fallback, max time.Duration) (time.Duration, error) {
	raw := r.URL.Query().Get("timeout")
	if raw == "" {
		return fallback, nil
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, wsdiscovery.NewInvalidArgumentError(fmt.Sprintf("timeout %q must be whole seconds", raw))
	}
	if seconds <= 0 {
		return 0, wsdiscovery.NewInvalidArgumentError(fmt.Sprintf("timeout %d must be positive", seconds))
	}

	// Compare in seconds so huge values cannot overflow the Duration
	if time.Duration(seconds) > max/time.Second {
		return max, nil
	}
	return time.Duration(seconds) * time.Second, nil
}

// statusFor maps a discovery error to an HTTP status code
func statusFor(err error) int {
	switch {
	case errors.Is(err, wsdiscovery.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, wsdiscovery.ErrNoInterfaces):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleDevices runs one discovery and returns every device as a JSON array
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	timeout, err := parseTimeout(r, s.config.DefaultTimeout, s.config.MaxTimeout)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	devices, err := s.discoverer.DiscoverList(r.Context(), timeout)
	if err != nil {
		logging.Error("Discovery request failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("partial_devices", len(devices)),
			zap.Error(err),
		)
		writeError(w, statusFor(err), err)
		return
	}
	if devices == nil {
		devices = []wsdiscovery.Device{}
	}

	logging.Info("Discovery request served",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Duration("timeout", timeout),
		zap.Int("devices", len(devices)),
	)
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{
		Error: err.Error(),
		Hint:  wsdiscovery.GetTroubleshootingHint(err),
	})
}
