package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"i4.energy/across/espgw/esp"
)

// Server handles incoming HTTP requests for interacting with the
// configured ESP8266 device
type Server struct {
	Logger *slog.Logger
	Device *esp.Device
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /ip", s.handleIP)
	mux.HandleFunc("POST /connect", s.handleConnect)
	mux.HandleFunc("POST /send", s.handleSend)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// deviceError reports a failed exchange. Timeouts map to 504.
func (s *Server) deviceError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		s.sendError(w, err.Error(), http.StatusGatewayTimeout)
		return
	}
	s.sendError(w, err.Error(), http.StatusInternalServerError)
}

// handleStatus reports whether the module answers AT
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	started, err := s.Device.IsStarted(r.Context())
	if err != nil {
		s.Logger.Error("Failed to query module", "error", err)
		s.deviceError(w, err)
		return
	}

	type StatusResponse struct {
		Started bool `json:"started"`
	}
	s.sendJSON(w, StatusResponse{Started: started})
}

// handleIP returns the module's local IPv4 address
func (s *Server) handleIP(w http.ResponseWriter, r *http.Request) {
	ip, err := s.Device.IP(r.Context())
	if err != nil {
		s.Logger.Error("Failed to query local address", "error", err)
		s.deviceError(w, err)
		return
	}

	type IPResponse struct {
		IP string `json:"ip"`
	}
	s.sendJSON(w, IPResponse{IP: ip.String()})
}

// handleConnect opens a TCP or UDP connection from the module
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	type ConnectRequest struct {
		Protocol string `json:"protocol"`
		Host     string `json:"host"`
		Port     uint16 `json:"port"`
	}

	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Host == "" || req.Port == 0 {
		s.sendError(w, "both 'host' and 'port' fields are required", http.StatusBadRequest)
		return
	}
	if req.Protocol == "" {
		req.Protocol = string(esp.TCP)
	}
	proto, err := esp.ParseProtocol(req.Protocol)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	linked, err := s.Device.Open(r.Context(), proto, req.Host, req.Port)
	if err != nil {
		s.Logger.Error("Failed to open connection", "error", err, "host", req.Host, "port", req.Port)
		s.deviceError(w, err)
		return
	}
	if !linked {
		s.sendError(w, "connection not established", http.StatusBadGateway)
		return
	}

	s.Logger.Info("Connection opened", "protocol", proto, "host", req.Host, "port", req.Port)
	w.WriteHeader(http.StatusOK)
}

// handleSend transmits data over the open connection
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	type SendRequest struct {
		Data string `json:"data"`
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	accepted, err := s.Device.Send(r.Context(), []byte(req.Data))
	switch {
	case errors.Is(err, esp.ErrEmptyPayload):
		s.sendError(w, "'data' field is required", http.StatusBadRequest)
		return
	case errors.Is(err, esp.ErrPayloadTooLarge):
		s.sendError(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	case err != nil:
		s.Logger.Error("Failed to send data", "error", err)
		s.deviceError(w, err)
		return
	}
	if !accepted {
		s.sendError(w, "payload rejected by module", http.StatusBadGateway)
		return
	}

	s.Logger.Info("Data sent successfully", "length", len(req.Data))
	w.WriteHeader(http.StatusOK)
}
