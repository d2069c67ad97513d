// Package protocol implements the subset of the Redis Serialization
// Protocol (RESP) spoken by the server.
//
// Requests are arrays whose elements are simple strings, bulk strings or
// integers. Replies are encoded from the Reply type:
//
//	reader := protocol.NewReader(conn)
//	writer := protocol.NewWriter(conn)
//	for {
//		frame, err := reader.ReadFrame()
//		if err != nil {
//			break
//		}
//		writer.WriteReply(protocol.SimpleReply("PONG"))
//		writer.Flush()
//	}
//
// Decoding never panics on malformed input; every failure is a
// *ProtocolError matching ErrProtocol.
package protocol
