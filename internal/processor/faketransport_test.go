package processor

import (
	"sync"

	"github.com/Klingon-tech/ledgercore/internal/p2p"
)

// fakePeerHandle is a PeerHandle test double independent of libp2p.
type fakePeerHandle string

func (f fakePeerHandle) String() string { return string(f) }

// fakeTransport is an in-memory p2p.Transport double that lets processor
// tests inject inbound messages and inspect what got broadcast or written
// back, without a real libp2p host.
type fakeTransport struct {
	mu          sync.Mutex
	inbound     chan p2p.Inbound
	broadcasts  []p2p.Message
	writes      map[string][]p2p.Message
	connectedTo []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan p2p.Inbound, 64),
		writes:  make(map[string][]p2p.Message),
	}
}

func (f *fakeTransport) Broadcast(msg p2p.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, msg)
	return nil
}

func (f *fakeTransport) Connect(addr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectedTo = append(f.connectedTo, addr)
	return nil
}

func (f *fakeTransport) Write(peer p2p.PeerHandle, msg p2p.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes[peer.String()] = append(f.writes[peer.String()], msg)
	return nil
}

func (f *fakeTransport) Inbound() <-chan p2p.Inbound {
	return f.inbound
}

// deliver injects an inbound message as if it arrived from peer. It does
// not wait for any worker to handle it; handle() runs on whichever worker
// goroutine receives from the channel.
func (f *fakeTransport) deliver(peer string, msg p2p.Message) {
	f.inbound <- p2p.Inbound{Msg: msg, From: fakePeerHandle(peer)}
}

func (f *fakeTransport) broadcastCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.broadcasts)
}

func (f *fakeTransport) lastBroadcast() p2p.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.broadcasts[len(f.broadcasts)-1]
}

func (f *fakeTransport) broadcastsOfKind(kind p2p.Kind) []p2p.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []p2p.Message
	for _, msg := range f.broadcasts {
		if msg.Kind == kind {
			out = append(out, msg)
		}
	}
	return out
}

func (f *fakeTransport) writesTo(peer string) []p2p.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[peer]
}
