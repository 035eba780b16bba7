package socks5

// ProtocolError reports malformed or unsupported SOCKS5 input. The session
// that produced it cannot continue and no reply is owed to the peer.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "socks5: " + e.Reason
}

func protocolErrorf(reason string) error {
	return &ProtocolError{Reason: reason}
}
