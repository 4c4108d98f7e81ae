package httpx

import (
	"io"
	"net/http"
)

const healthResponse = `{"status":"ok","service":"ai-gateway"}`

// healthHandler answers readiness/liveness probes. It is mounted outside
// the auth chain so load balancers can reach it without credentials.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}
