package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"vidserve/auth"
	"vidserve/config"
	"vidserve/job"
	"vidserve/logger"
	"vidserve/models"
)

// orch is the orchestrator every conversion handler drives; main wires it
// at startup, tests swap in one backed by a fake engine.
var orch *job.Orchestrator

// SetOrchestrator installs the orchestrator used by the conversion routes.
func SetOrchestrator(o *job.Orchestrator) {
	orch = o
}

// verifyJWT verifies the Bearer token on the request and returns its claims
func verifyJWT(r *http.Request) (*models.AccountJWT, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("authorization header required")
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return nil, fmt.Errorf("invalid authorization header format")
	}

	return auth.VerifyAccountJWT(token, auth.VerifyConfig{
		SecretKey: []byte(config.GetJWTSecret()),
	})
}

// respondJSON writes payload as the JSON response body
func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("failed to encode response: %v", err)
	}
}
