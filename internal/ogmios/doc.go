// Package ogmios is a chain-sync client for the Ogmios v6 JSON-RPC
// websocket interface.
//
// A Client negotiates an intersection with FindIntersection, then keeps a
// window of nextBlock requests in flight. Each call to Next consumes one
// response and sends one more request, so the node never waits on the
// client. Responses arrive in request order; every request carries a
// fresh id and a response with an unexpected id is a protocol error.
//
// Ogmios must run with --include-cbor so that transactions carry their
// raw bytes.
package ogmios
