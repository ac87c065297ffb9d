// Package websocket pushes analysis progress to browser clients.
//
// A Hub owns the set of connected clients and fans every broadcast out to
// them. Each Client runs a read pump, which only keeps the connection alive,
// and a write pump that drains its send buffer. Slow clients whose buffer
// fills up are disconnected rather than allowed to stall the hub, and
// broadcasts never block the caller.
package websocket
