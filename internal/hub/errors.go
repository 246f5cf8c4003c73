package hub

// maxConsecutiveMalformed is the "three consecutive malformed frames"
// threshold from the Router's dispatch rules, after which the offending
// socket is closed with the protocol-error code.
const maxConsecutiveMalformed = 3

// recordClientMalformed replies with an error frame for a malformed or
// invalid frame (including a tag the client role does not accept) from a
// client socket and closes the socket once the streak reaches
// maxConsecutiveMalformed. A frame with a recognized client tag resets the
// streak before it is dispatched (see handleClientFrame in hub.go).
func (h *Hub) recordClientMalformed(c *clientConn, err error) {
	c.malformedCount++
	c.writeJSON(newError("malformed message: " + err.Error()))
	if c.malformedCount >= maxConsecutiveMalformed {
		c.requestClose(closeProtocolError, "too many malformed frames")
	}
}

func (h *Hub) recordBrowserMalformed(b *browserConn, err error) {
	b.malformedCount++
	b.writeJSON(newError("malformed message: " + err.Error()))
	if b.malformedCount >= maxConsecutiveMalformed {
		b.requestClose(closeProtocolError, "too many malformed frames")
	}
}
