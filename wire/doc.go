// Package wire defines the OJS protocol surface: request/response
// payload shapes for every coordinator call, the structured job error,
// and the frame envelope plus codecs used by the WebSocket transport.
//
// Payloads are plain structs with JSON tags; the transport package maps
// them onto HTTP calls or protocol frames. The [Value] type is a closed
// tagged union used to transcode frame payloads between JSON and
// MessagePack without runtime type probing.
package wire
