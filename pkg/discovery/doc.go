// Package discovery implements the coordinator's side of the UDP
// announce/ack handshake: controllers broadcast an announce datagram
// on the LAN, and the responder replies directly to the sender with
// the coordinator's IPv4 address and TCP port.
//
// A supplemental mDNS advertisement of the coordinator's TCP port is
// also provided for LAN-side operator tooling. Controllers never
// consult it; the UDP handshake alone is authoritative for them.
package discovery
