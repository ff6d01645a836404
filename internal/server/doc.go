// Package server implements the network side of linechat: a raw TCP line
// listener, a WebSocket endpoint carrying the same protocol, and the HTTP
// health, metrics and test page routes.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, transports, routing, and HTTP handlers. Chat state
// itself lives in package chat; this package only moves lines.
package server
