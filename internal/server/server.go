// Package server exposes an engine over HTTP/JSON and gRPC.
package server

import (
	"errors"
	"log/slog"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/alfredjeanlab/asgdb/internal/codec"
	"github.com/alfredjeanlab/asgdb/internal/engine"
	"github.com/alfredjeanlab/asgdb/internal/model"
)

// Server serves one engine to remote clients.
type Server struct {
	engine *engine.Engine
	hub    *Hub
	log    *slog.Logger
}

// New returns a Server for e. Events published to hub are streamed to
// clients of GET /v1/events/stream. A nil hub is replaced by an idle one.
func New(e *engine.Engine, hub *Hub, logger *slog.Logger) *Server {
	if hub == nil {
		hub = NewHub()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: e, hub: hub, log: logger}
}

// errorClass sorts an engine error into the failure a client should see.
type errorClass int

const (
	classInternal errorClass = iota
	classInvalid
	classUnavailable
)

func classify(err error) errorClass {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve), errors.Is(err, codec.ErrEncode):
		return classInvalid
	case errors.Is(err, engine.ErrConnectivity):
		return classUnavailable
	}
	return classInternal
}

func httpStatus(err error) int {
	switch classify(err) {
	case classInvalid:
		return http.StatusBadRequest
	case classUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func grpcCode(err error) codes.Code {
	switch classify(err) {
	case classInvalid:
		return codes.InvalidArgument
	case classUnavailable:
		return codes.Unavailable
	}
	return codes.Internal
}
