package handlers

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

// Health reports liveness. It answers 503 until both the animation and plan
// services are wired so load balancers keep a half-built process out.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	resp := healthResponse{Status: "ok", UptimeSeconds: int64(time.Since(a.started) / time.Second)}
	if a.Animations == nil || a.Plans == nil {
		resp.Status = "unavailable"
		a.json(w, http.StatusServiceUnavailable, resp)
		return
	}
	a.json(w, http.StatusOK, resp)
}
