package transport

// ReceivedFrame is one radio frame as delivered by the link. Data holds
// the raw network-layer bytes; parsing is left to the caller.
type ReceivedFrame struct {
	Data     []byte
	PeerAddr PeerAddress
}

// FrameHandler is called for each received frame on the read loop.
// Handlers must not block for long.
type FrameHandler func(f *ReceivedFrame)
