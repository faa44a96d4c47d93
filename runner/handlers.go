package runner

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tensorcore/calmrt/forward"
)

// forwardRequest mirrors spec.md §6's forward(transformer_handle, token,
// pos, flags) signature, minus the transformer_handle (this process holds
// exactly one).
type forwardRequest struct {
	Token int `json:"token"`
	Pos   int `json:"pos"`
	Flags uint `json:"flags"`
}

type forwardResponse struct {
	Logits []float32 `json:"logits,omitempty"`
	Done   bool      `json:"done"`
}

// forward runs one forward pass and returns its logits, or {done: true}
// when UPDATE_KV_ONLY suppressed them (spec.md §4.5 step 5, §6). This
// process never tokenizes or samples: callers supply a token ID and read
// back a raw logit vector, same boundary spec.md §1 draws around the
// core.
func (s *Server) forward(w http.ResponseWriter, r *http.Request) {
	if s.status != StatusReady {
		http.Error(w, "model not ready", http.StatusServiceUnavailable)
		return
	}

	var req forwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	logits := forward.Forward(s.t, req.Token, req.Pos, forward.Flags(req.Flags))

	w.Header().Set("Content-Type", "application/json")
	resp := forwardResponse{Logits: logits, Done: logits == nil}
	if err := json.NewEncoder(w).Encode(&resp); err != nil {
		http.Error(w, fmt.Sprintf("failed to encode response: %v", err), http.StatusInternalServerError)
	}
}
