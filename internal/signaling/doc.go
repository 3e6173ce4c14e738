// Package signaling implements a WebRTC rendezvous service: it introduces
// peers inside named rooms and relays their negotiation messages (SDP offers
// and answers, ICE candidates) as opaque payloads. No media or data-channel
// traffic ever passes through here; once negotiation succeeds the peers talk
// directly.
//
// All state lives behind a single event loop (Core.Run). Transports and the
// admin API submit events; handlers run one at a time, so room membership and
// connection state change atomically with respect to every observer.
package signaling
