// Package server wires HTTP handlers into a ServeMux for the linechat
// application via routing helpers.
package server

import "net/http"

// routes returns the HTTP ServeMux: health check, WebSocket endpoint, test
// page and metrics.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/test", TestPageHandler)
	mux.Handle("/metrics", s.metrics)
	return mux
}
