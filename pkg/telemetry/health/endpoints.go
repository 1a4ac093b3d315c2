package health

import (
	"encoding/json"
	"net/http"
)

// LivenessHandler serves /health. It always answers 200.
//
//	{"status":"ok","service":"tollbooth","version":"1.0.0"}
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, c.CheckLiveness())
	}
}

// ReadinessHandler serves /ready. It answers 503 while degraded.
//
//	{
//	    "status": "ready",
//	    "budgets_loaded": 1204,
//	    "providers_configured": true,
//	    "checks": {"store": {"status": "ok", "duration_ms": 0.8}}
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.CheckReadiness(r.Context())

		code := http.StatusOK
		if status.Status != StatusReady {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
	}
}

// Register mounts /health and /ready on mux.
func (c *Checker) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", c.LivenessHandler())
	mux.HandleFunc("GET /ready", c.ReadinessHandler())
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(v)
	}
}
