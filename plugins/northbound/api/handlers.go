package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/veesix-networks/tpc/pkg/northbound"
)

func (c *Component) handleFlush(w http.ResponseWriter, r *http.Request) {
	c.respond(w, c.adapter.Flush(r.Context()))
}

func (c *Component) handleTurnOnChecking(w http.ResponseWriter, r *http.Request) {
	c.respond(w, c.adapter.TurnOnChecking(r.Context()))
}

func (c *Component) handleTurnOffChecking(w http.ResponseWriter, r *http.Request) {
	c.respond(w, c.adapter.TurnOffChecking(r.Context()))
}

func (c *Component) handleAddAttack(w http.ResponseWriter, r *http.Request) {
	c.withBody(w, r, c.adapter.AddAttack)
}

func (c *Component) handleAddSliceID(w http.ResponseWriter, r *http.Request) {
	c.withBody(w, r, c.adapter.AddSliceID)
}

func (c *Component) handleAddSliceQoS(w http.ResponseWriter, r *http.Request) {
	c.withBody(w, r, c.adapter.AddSliceQoS)
}

func (c *Component) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	c.writeJSON(w, buildOpenAPISpec(c.sliceControl))
}

func (c *Component) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	c.writeJSON(w, c.GetStatus())
}

func (c *Component) withBody(w http.ResponseWriter, r *http.Request, fn func(context.Context, []byte) error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		c.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	c.respond(w, fn(r.Context(), body))
}

func (c *Component) respond(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, northbound.ErrInvalidBody):
		c.writeError(w, http.StatusBadRequest, err.Error())
	default:
		c.logger.Error("Request failed", "error", err)
		c.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (c *Component) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	c.writeJSON(w, ErrorResponse{Error: message})
}

func (c *Component) writeJSON(w http.ResponseWriter, v interface{}) {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.Encode(v)
}
