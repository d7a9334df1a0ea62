package p2p

// PeerHandle identifies a remote peer a message can be written back to.
// Concrete transports (GossipTransport) implement this over their own
// connection identifiers (libp2p peer IDs).
type PeerHandle interface {
	String() string
}

// Inbound is one message received from a peer, paired with a handle the
// processor can use to reply directly to that peer (e.g. GetBlocks in
// response to NewBlockHashes).
type Inbound struct {
	Msg  Message
	From PeerHandle
}

// Transport is the external collaborator the message processor depends on.
// It owns network I/O: fan-out broadcast, direct per-peer writes, outbound
// connection establishment, and a single channel of inbound messages shared
// by every worker in the processor's pool.
type Transport interface {
	// Broadcast publishes msg to every connected peer.
	Broadcast(msg Message) error
	// Connect dials a peer at the given address (e.g. a seed from config).
	Connect(addr string) error
	// Write sends msg directly to a single peer.
	Write(peer PeerHandle, msg Message) error
	// Inbound returns the channel of messages received from any peer.
	// Every processor worker ranges over the same channel.
	Inbound() <-chan Inbound
}
