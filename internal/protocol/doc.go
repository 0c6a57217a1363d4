// Package protocol implements the lobby wire format.
// Every datagram carries a 4-byte opcode followed by the packet fields in
// declaration order. Fixed-width integers are big-endian and strings are a
// 2-byte length prefix followed by the raw bytes.
package protocol
