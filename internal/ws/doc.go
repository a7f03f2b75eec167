// Package ws pushes each emitted pipeline result to connected WebSocket
// clients, with per-client send buffering and ping/pong liveness.
package ws
