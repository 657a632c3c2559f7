package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/hpungsan/tubestreak/internal/errors"
	"github.com/hpungsan/tubestreak/internal/host"
)

// maxOpenBody bounds POST /open request bodies.
const maxOpenBody = 64 << 10

// Handlers contains the HTTP route handlers of the host endpoint.
type Handlers struct {
	ingestor *host.Ingestor
	events   chan<- string
	version  string
}

// OpenRequest is the body of POST /open.
type OpenRequest struct {
	Address string `json:"address"`
}

// OpenResponse is returned once the address has been queued.
type OpenResponse struct {
	Accepted bool `json:"accepted"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Version string             `json:"version"`
	Status  host.DeliveryState `json:"status"`
}

// HandleOpen handles POST /open by queueing the address for the warm path.
// The address is decoded by the ingestor, not here.
func (h *Handlers) HandleOpen(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxOpenBody))
	if err := dec.Decode(&req); err != nil {
		renderError(w, errors.NewInvalidRequest("invalid JSON body"))
		return
	}
	req.Address = strings.TrimSpace(req.Address)
	if req.Address == "" {
		renderError(w, errors.NewInvalidRequest("address is required"))
		return
	}

	select {
	case h.events <- req.Address:
		renderJSON(w, http.StatusAccepted, OpenResponse{Accepted: true})
	case <-r.Context().Done():
		renderError(w, errors.NewHostUnavailable("local endpoint", r.Context().Err()))
	}
}

// HandleStatus handles GET /status.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, StatusResponse{
		Version: h.version,
		Status:  h.ingestor.Status(),
	})
}
