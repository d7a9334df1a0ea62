package p2p

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Klingon-tech/ledgercore/internal/log"
	"github.com/Klingon-tech/ledgercore/internal/storage"
	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	drouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	dutil "github.com/libp2p/go-libp2p/p2p/discovery/util"
	ma "github.com/multiformats/go-multiaddr"
)

const (
	messageTopic = "ledgercore/message/1"

	directWriteProtocol = protocol.ID("/ledgercore/direct/1.0.0")

	dhtRendezvousFallback = "ledgercore"
	dhtDiscoveryInterval  = 30 * time.Second
	peerConnectTimeout    = 5 * time.Second
	inboundBufferSize     = 256
	persistInterval       = 5 * time.Minute
	stalePeerThreshold    = 24 * time.Hour
)

// Config configures the libp2p-backed Transport.
type Config struct {
	ListenAddr string
	Port       int
	Seeds      []string
	NoDiscover bool
	DB         storage.DB // peer address-book persistence; nil disables it
	DHTServer  bool       // run the DHT in server mode (seed/bootstrap nodes)
	NetworkID  string     // isolates discovery namespace per network
	DataDir    string     // where the persistent libp2p identity key lives
}

// peerHandle wraps a libp2p peer ID to satisfy PeerHandle.
type peerHandle struct{ id peer.ID }

func (p peerHandle) String() string { return p.id.String() }

// GossipTransport implements Transport over libp2p: GossipSub for
// broadcast, direct libp2p streams for unicast replies, and mDNS/DHT for
// discovery.
type GossipTransport struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc

	host   host.Host
	pubsub *pubsub.PubSub
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
	dht    *dht.IpfsDHT

	peerStore *PeerStore

	mu    sync.Mutex
	peers map[peer.ID]struct{}

	inbound chan Inbound
}

// NewGossipTransport constructs a Transport; call Start to bring up the
// libp2p host and begin exchanging messages.
func NewGossipTransport(cfg Config) *GossipTransport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &GossipTransport{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		peers:   make(map[peer.ID]struct{}),
		inbound: make(chan Inbound, inboundBufferSize),
	}
	if cfg.DB != nil {
		t.peerStore = NewPeerStore(cfg.DB)
	}
	return t
}

func (t *GossipTransport) rendezvous() string {
	if t.cfg.NetworkID != "" {
		return "ledgercore/" + t.cfg.NetworkID
	}
	return dhtRendezvousFallback
}

// Start brings up the libp2p host, joins the message topic, registers the
// direct-write stream handler, and launches discovery/persistence loops.
func (t *GossipTransport) Start() error {
	addr := fmt.Sprintf("/ip4/%s/tcp/%d", t.cfg.ListenAddr, t.cfg.Port)

	opts := []libp2p.Option{libp2p.ListenAddrStrings(addr)}

	if t.cfg.DataDir != "" {
		priv, err := loadOrCreateNodeKey(t.cfg.DataDir)
		if err != nil {
			return fmt.Errorf("load p2p identity: %w", err)
		}
		opts = append(opts, libp2p.Identity(priv))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return fmt.Errorf("create libp2p host: %w", err)
	}
	t.host = h

	h.SetStreamHandler(directWriteProtocol, t.handleDirectStream)

	if !t.cfg.NoDiscover {
		if err := t.initDHT(); err != nil {
			h.Close()
			return fmt.Errorf("init dht: %w", err)
		}
	}

	ps, err := pubsub.NewGossipSub(t.ctx, h)
	if err != nil {
		t.closeDHT()
		h.Close()
		return fmt.Errorf("create pubsub: %w", err)
	}
	t.pubsub = ps

	topic, err := ps.Join(messageTopic)
	if err != nil {
		t.closeDHT()
		h.Close()
		return fmt.Errorf("join message topic: %w", err)
	}
	t.topic = topic

	sub, err := topic.Subscribe()
	if err != nil {
		t.closeDHT()
		h.Close()
		return fmt.Errorf("subscribe message topic: %w", err)
	}
	t.sub = sub

	go t.readLoop()

	if t.peerStore != nil {
		go t.loadPersistedPeers()
		go t.runPersistLoop()
	}

	if len(t.cfg.Seeds) > 0 {
		t.connectSeedsOnce()
		go t.connectSeedsLoop()
	}

	if !t.cfg.NoDiscover {
		t.startMDNS()
		go t.runDHTDiscovery()
	}

	log.P2P.Info().Str("id", h.ID().String()).Msg("p2p transport started")
	return nil
}

// Stop tears down subscriptions, discovery, and the libp2p host.
func (t *GossipTransport) Stop() error {
	if t.peerStore != nil {
		t.persistPeers()
	}
	t.cancel()
	if t.sub != nil {
		t.sub.Cancel()
	}
	if t.topic != nil {
		t.topic.Close()
	}
	t.closeDHT()
	if t.host != nil {
		return t.host.Close()
	}
	return nil
}

// Broadcast publishes msg to the gossip topic.
func (t *GossipTransport) Broadcast(msg Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	return t.topic.Publish(t.ctx, data)
}

// Connect dials a peer given as a multiaddr string (e.g. a configured seed).
func (t *GossipTransport) Connect(addr string) error {
	info, err := peer.AddrInfoFromString(addr)
	if err != nil {
		return fmt.Errorf("parse peer addr: %w", err)
	}
	ctx, cancel := context.WithTimeout(t.ctx, peerConnectTimeout)
	defer cancel()
	if err := t.host.Connect(ctx, *info); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	t.addPeer(info.ID)
	return nil
}

// Write sends msg directly to a single peer over a dedicated stream,
// bypassing gossip fan-out (used for request/response exchanges such as
// GetBlocks in reply to NewBlockHashes).
func (t *GossipTransport) Write(to PeerHandle, msg Message) error {
	ph, ok := to.(peerHandle)
	if !ok {
		return fmt.Errorf("write: peer handle not produced by this transport")
	}
	ctx, cancel := context.WithTimeout(t.ctx, peerConnectTimeout)
	defer cancel()
	s, err := t.host.NewStream(ctx, ph.id, directWriteProtocol)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer s.Close()

	data, err := Encode(msg)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(s)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write stream: %w", err)
	}
	return w.Flush()
}

// Inbound returns the shared channel of messages received from any peer,
// via gossip or direct stream.
func (t *GossipTransport) Inbound() <-chan Inbound {
	return t.inbound
}

func (t *GossipTransport) handleDirectStream(s network.Stream) {
	defer s.Close()
	data, err := readAll(s)
	if err != nil {
		log.P2P.Warn().Err(err).Msg("direct stream read failed")
		return
	}
	msg, err := Decode(data)
	if err != nil {
		log.P2P.Warn().Err(err).Msg("direct stream decode failed")
		return
	}
	from := s.Conn().RemotePeer()
	t.addPeer(from)
	t.deliver(msg, peerHandle{id: from})
}

func readAll(s network.Stream) ([]byte, error) {
	r := bufio.NewReader(s)
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			break
		}
	}
	return out, nil
}

func (t *GossipTransport) readLoop() {
	for {
		m, err := t.sub.Next(t.ctx)
		if err != nil {
			return // context cancelled
		}
		if m.ReceivedFrom == t.host.ID() {
			continue
		}
		msg, err := Decode(m.Data)
		if err != nil {
			log.P2P.Warn().Err(err).Msg("discarding malformed gossip message")
			continue
		}
		t.addPeer(m.ReceivedFrom)
		t.deliver(msg, peerHandle{id: m.ReceivedFrom})
	}
}

func (t *GossipTransport) deliver(msg Message, from PeerHandle) {
	select {
	case t.inbound <- Inbound{Msg: msg, From: from}:
	case <-t.ctx.Done():
	}
}

func (t *GossipTransport) addPeer(id peer.ID) {
	t.mu.Lock()
	_, known := t.peers[id]
	t.peers[id] = struct{}{}
	t.mu.Unlock()
	if !known {
		log.P2P.Debug().Str("peer", id.String()).Msg("peer added")
	}
}

func (t *GossipTransport) PeerCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.peers)
}

func (t *GossipTransport) startMDNS() {
	svc := mdns.NewMdnsService(t.host, t.rendezvous(), &discoveryNotifee{t: t})
	_ = svc.Start() // mDNS failure is non-fatal.
}

type discoveryNotifee struct{ t *GossipTransport }

func (d *discoveryNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == d.t.host.ID() {
		return
	}
	ctx, cancel := context.WithTimeout(d.t.ctx, peerConnectTimeout)
	defer cancel()
	if err := d.t.host.Connect(ctx, pi); err == nil {
		d.t.addPeer(pi.ID)
	}
}

func (t *GossipTransport) connectSeedsOnce() bool {
	connected := false
	for _, addr := range t.cfg.Seeds {
		info, err := peer.AddrInfoFromString(addr)
		if err != nil {
			log.P2P.Warn().Str("addr", addr).Err(err).Msg("bad seed address")
			continue
		}
		ctx, cancel := context.WithTimeout(t.ctx, 10*time.Second)
		err = t.host.Connect(ctx, *info)
		cancel()
		if err != nil {
			log.P2P.Warn().Str("peer", info.ID.String()).Err(err).Msg("seed connect failed")
			continue
		}
		t.addPeer(info.ID)
		connected = true
	}
	return connected
}

func (t *GossipTransport) connectSeedsLoop() {
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-time.After(10 * time.Second):
			if t.PeerCount() == 0 {
				t.connectSeedsOnce()
			}
		}
	}
}

func (t *GossipTransport) initDHT() error {
	mode := dht.ModeClient
	if t.cfg.DHTServer {
		mode = dht.ModeServer
	}
	kadDHT, err := dht.New(t.ctx, t.host, dht.Mode(mode))
	if err != nil {
		return fmt.Errorf("create kad-dht: %w", err)
	}
	t.dht = kadDHT
	return kadDHT.Bootstrap(t.ctx)
}

func (t *GossipTransport) closeDHT() {
	if t.dht != nil {
		t.dht.Close()
		t.dht = nil
	}
}

func (t *GossipTransport) runDHTDiscovery() {
	if t.dht == nil {
		return
	}
	rd := drouting.NewRoutingDiscovery(t.dht)
	dutil.Advertise(t.ctx, rd, t.rendezvous())

	ticker := time.NewTicker(dhtDiscoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.findDHTPeers(rd)
		}
	}
}

func (t *GossipTransport) findDHTPeers(rd *drouting.RoutingDiscovery) {
	ctx, cancel := context.WithTimeout(t.ctx, 20*time.Second)
	defer cancel()
	peerCh, err := rd.FindPeers(ctx, t.rendezvous())
	if err != nil {
		return
	}
	for pi := range peerCh {
		if pi.ID == t.host.ID() || len(pi.Addrs) == 0 {
			continue
		}
		connCtx, connCancel := context.WithTimeout(t.ctx, peerConnectTimeout)
		if err := t.host.Connect(connCtx, pi); err == nil {
			t.addPeer(pi.ID)
		}
		connCancel()
	}
}

func (t *GossipTransport) loadPersistedPeers() {
	records, err := t.peerStore.LoadAll()
	if err != nil {
		log.P2P.Warn().Err(err).Msg("failed to load persisted peers")
		return
	}
	for _, rec := range records {
		id, err := peer.Decode(rec.ID)
		if err != nil {
			continue
		}
		addrInfo := peer.AddrInfo{ID: id}
		for _, a := range rec.Addrs {
			if m, err := ma.NewMultiaddr(a); err == nil {
				addrInfo.Addrs = append(addrInfo.Addrs, m)
			}
		}
		ctx, cancel := context.WithTimeout(t.ctx, peerConnectTimeout)
		if err := t.host.Connect(ctx, addrInfo); err == nil {
			t.addPeer(id)
		}
		cancel()
	}
}

func (t *GossipTransport) runPersistLoop() {
	ticker := time.NewTicker(persistInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.persistPeers()
			if _, err := t.peerStore.PruneStale(stalePeerThreshold); err != nil {
				log.P2P.Warn().Err(err).Msg("prune stale peers failed")
			}
		}
	}
}

func (t *GossipTransport) persistPeers() {
	t.mu.Lock()
	ids := make([]peer.ID, 0, len(t.peers))
	for id := range t.peers {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	for _, id := range ids {
		var addrs []string
		for _, a := range t.host.Peerstore().Addrs(id) {
			addrs = append(addrs, a.String())
		}
		rec := PeerRecord{ID: id.String(), Addrs: addrs, LastSeen: time.Now().Unix()}
		if err := t.peerStore.Save(rec); err != nil {
			log.P2P.Warn().Err(err).Msg("persist peer failed")
		}
	}
}

// loadOrCreateNodeKey loads a persisted libp2p identity key from dataDir,
// or generates and saves a new one, so the peer ID is stable across
// restarts.
func loadOrCreateNodeKey(dataDir string) (libp2pcrypto.PrivKey, error) {
	keyPath := filepath.Join(dataDir, "node.key")

	data, err := os.ReadFile(keyPath)
	if err == nil {
		raw, err := hex.DecodeString(string(data))
		if err != nil {
			return nil, fmt.Errorf("decode node key: %w", err)
		}
		return libp2pcrypto.UnmarshalEd25519PrivateKey(raw)
	}

	priv, _, err := libp2pcrypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	raw, err := priv.Raw()
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(raw)), 0600); err != nil {
		return nil, fmt.Errorf("write node key: %w", err)
	}
	return priv, nil
}

// ID returns this transport's libp2p peer ID (empty before Start).
func (t *GossipTransport) ID() peer.ID {
	if t.host == nil {
		return ""
	}
	return t.host.ID()
}

// Addrs returns this transport's full dialable multiaddrs.
func (t *GossipTransport) Addrs() []string {
	if t.host == nil {
		return nil
	}
	var out []string
	for _, a := range t.host.Addrs() {
		out = append(out, fmt.Sprintf("%s/p2p/%s", a, t.host.ID()))
	}
	return out
}
