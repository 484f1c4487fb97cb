// Package wire defines the JSON message types exchanged between the
// coordinator and its controllers, over both the UDP discovery
// handshake and the TCP session stream.
//
// Every message is a single compact JSON object classified by its
// top-level "type" field. There is no length prefix and no escaping
// of embedded newlines: peers must serialize without raw newline bytes
// inside the object, since the TCP stream is framed on '\n'.
package wire
