package peerwire

import (
	"io"
	"net"

	"github.com/gammazero/deque"
	"github.com/majestrate/slimweb/lib/bittorrent"
	"github.com/majestrate/slimweb/lib/bittorrent/extensions"
	"github.com/majestrate/slimweb/lib/common"
	"github.com/majestrate/slimweb/lib/log"
	"github.com/majestrate/slimweb/lib/sync"
	"github.com/pkg/errors"
)

// Plugin is a BEP 10 extension attached to a Conn
type Plugin interface {
	// Name is advertised in our extended handshake "m" dict
	Name() extensions.Extension
	// OnHandshake is called once the base handshake is received
	OnHandshake(ih common.Infohash, id common.PeerID, reserved bittorrent.Reserved)
	// OnExtendedHandshake is called for every extended handshake the peer sends
	OnExtendedHandshake(msg extensions.Message)
}

// Callbacks are called synchronously from the goroutine reading the connection. nil functions are not called.
type Callbacks struct {
	CompletedHandshake    func(*Conn, bittorrent.Handshake)
	ReadExtendedHandshake func(*Conn, extensions.Message)
	ReadMessage           func(*Conn, common.WireMessage)
}

// Options for a Conn
type Options struct {
	// Infohash we want, zero to accept whatever the dialer asks for
	Infohash common.Infohash
	PeerID   common.PeerID
	// LocalOnly disables the extension protocol bit in our handshake
	LocalOnly bool
	Callbacks Callbacks
}

var ErrInfohashMismatch = errors.New("peer handshake has a different infohash")
var ErrClosed = errors.New("connection closed")

// Conn is a bittorrent peer wire connection running extensions
type Conn struct {
	c    io.ReadWriteCloser
	opts Options

	ourOpts   *extensions.OutgoingHandshake
	theirOpts extensions.Message
	theirs    bittorrent.Handshake
	plugins   []Plugin

	access    sync.Mutex
	sendReady *sync.Cond
	sendIdle  *sync.Cond
	sendQueue deque.Deque[[]byte]
	writing   bool
	closing   bool

	usChoke   bool
	peerChoke bool
}

// NewConn wraps a connection, the base handshake is not done yet
func NewConn(c io.ReadWriteCloser, opts Options) *Conn {
	conn := &Conn{
		c:         c,
		opts:      opts,
		ourOpts:   extensions.NewOutgoingHandshake(),
		usChoke:   true,
		peerChoke: true,
	}
	conn.sendReady = sync.NewCond(&conn.access)
	conn.sendIdle = sync.NewCond(&conn.access)
	go conn.runWriter()
	return conn
}

// ExtendedHandshake is our extended handshake, open for fields until Handshake sends it
func (c *Conn) ExtendedHandshake() extensions.HandshakeFields {
	return c.ourOpts
}

// Use attaches an extension, it must be called before Handshake
func (c *Conn) Use(p Plugin) error {
	err := c.ourOpts.SetSupported(p.Name())
	if err != nil {
		return errors.Wrapf(err, "use %s", p.Name())
	}
	c.access.Lock()
	c.plugins = append(c.plugins, p)
	c.access.Unlock()
	return nil
}

func (c *Conn) remoteName() string {
	if nc, ok := c.c.(net.Conn); ok && nc.RemoteAddr() != nil {
		return nc.RemoteAddr().String()
	}
	return c.PeerHandshake().PeerID.String()
}

// Handshake does the base handshake and then sends our extended handshake if both sides speak BEP 10
func (c *Conn) Handshake() (err error) {
	ours := bittorrent.NewHandshake(c.opts.Infohash, c.opts.PeerID)
	if c.opts.LocalOnly {
		ours.Reserved = bittorrent.Reserved{}
	}
	var zero common.Infohash
	accepting := c.opts.Infohash == zero
	if !accepting {
		if err = c.queue(ours.Bytes()); err != nil {
			return
		}
	}
	var theirs bittorrent.Handshake
	err = theirs.Recv(c.c)
	if err != nil {
		return errors.Wrap(err, "read handshake")
	}
	if accepting {
		ours.Infohash = theirs.Infohash
		if err = c.queue(ours.Bytes()); err != nil {
			return
		}
	} else if theirs.Infohash != c.opts.Infohash {
		return ErrInfohashMismatch
	}
	c.access.Lock()
	c.theirs = theirs
	c.access.Unlock()
	log.Debugf("handshake with %s done, infohash %s", theirs.PeerID.String(), theirs.Infohash.Hex())

	for _, p := range c.pluginList() {
		p.OnHandshake(theirs.Infohash, theirs.PeerID, theirs.Reserved)
	}
	if f := c.opts.Callbacks.CompletedHandshake; f != nil {
		f(c, theirs)
	}

	if !(ours.Reserved.Has(bittorrent.Extension) && theirs.Reserved.Has(bittorrent.Extension)) {
		log.Debugf("%s does not speak the extension protocol", c.remoteName())
		return
	}
	var msg common.WireMessage
	msg, err = c.ourOpts.Seal().ToWireMessage()
	if err != nil {
		return errors.Wrap(err, "encode extended handshake")
	}
	err = c.queue(msg)
	return
}

func (c *Conn) pluginList() []Plugin {
	c.access.Lock()
	defer c.access.Unlock()
	return append([]Plugin(nil), c.plugins...)
}

// Run reads messages until the connection is closed
func (c *Conn) Run() error {
	buff := make([]byte, common.MaxWireMessageSize+4)
	err := common.ReadWireMessages(c.c, c.recv, buff)
	if err == io.EOF || c.isClosing() {
		return nil
	}
	return errors.Wrap(err, "read wire messages")
}

func (c *Conn) recv(msg common.WireMessage) error {
	if msg.KeepAlive() {
		return nil
	}
	if f := c.opts.Callbacks.ReadMessage; f != nil {
		defer f(c, msg)
	}
	switch msg.MessageID() {
	case common.Choke:
		c.access.Lock()
		c.peerChoke = true
		c.access.Unlock()
		log.Debugf("%s choked us", c.remoteName())
	case common.UnChoke:
		c.access.Lock()
		c.peerChoke = false
		c.access.Unlock()
		log.Debugf("%s unchoked us", c.remoteName())
	case common.Extended:
		opts, err := extensions.FromWireMessage(msg)
		if err != nil {
			log.Warnf("failed to parse extended message from %s, %s", c.remoteName(), err.Error())
			return nil
		}
		if opts.ID == 0 {
			c.handleExtendedHandshake(opts)
		} else {
			log.Debugf("ignoring extended message id=%d from %s", opts.ID, c.remoteName())
		}
	default:
		log.Debugf("%s from %s", msg.MessageID().String(), c.remoteName())
	}
	return nil
}

func (c *Conn) handleExtendedHandshake(opts extensions.Message) {
	c.access.Lock()
	c.theirOpts = opts.Copy()
	c.access.Unlock()
	if f := c.opts.Callbacks.ReadExtendedHandshake; f != nil {
		f(c, opts)
	}
	for _, p := range c.pluginList() {
		p.OnExtendedHandshake(opts)
	}
}

// PeerExtensions gets the last extended handshake the peer sent
func (c *Conn) PeerExtensions() extensions.Message {
	c.access.Lock()
	defer c.access.Unlock()
	return c.theirOpts.Copy()
}

// PeerHandshake gets the peer's base handshake
func (c *Conn) PeerHandshake() bittorrent.Handshake {
	c.access.Lock()
	defer c.access.Unlock()
	return c.theirs
}

// Choke sends a choke message, even when we are already choking
func (c *Conn) Choke() {
	c.access.Lock()
	again := c.usChoke
	c.usChoke = true
	c.access.Unlock()
	if again {
		log.Debugf("choke %s again", c.remoteName())
	}
	c.queue(common.NewChoke())
}

// Unchoke sends an unchoke message if we are choking
func (c *Conn) Unchoke() {
	c.access.Lock()
	if !c.usChoke {
		c.access.Unlock()
		return
	}
	c.usChoke = false
	c.access.Unlock()
	c.queue(common.NewUnChoke())
}

// AmChoking returns true if we choke the peer
func (c *Conn) AmChoking() bool {
	c.access.Lock()
	defer c.access.Unlock()
	return c.usChoke
}

// PeerChoking returns true if the peer chokes us
func (c *Conn) PeerChoking() bool {
	c.access.Lock()
	defer c.access.Unlock()
	return c.peerChoke
}

// Send queues a wire message
func (c *Conn) Send(msg common.WireMessage) error {
	return c.queue(msg)
}

func (c *Conn) queue(data []byte) error {
	c.access.Lock()
	defer c.access.Unlock()
	if c.closing {
		return ErrClosed
	}
	c.sendQueue.PushBack(data)
	c.sendReady.Signal()
	return nil
}

func (c *Conn) isClosing() bool {
	c.access.Lock()
	defer c.access.Unlock()
	return c.closing
}

func (c *Conn) runWriter() {
	for {
		c.access.Lock()
		for c.sendQueue.Len() == 0 && !c.closing {
			c.sendReady.Wait()
		}
		if c.closing {
			c.access.Unlock()
			return
		}
		data := c.sendQueue.PopFront()
		c.writing = true
		c.access.Unlock()
		_, err := c.c.Write(data)
		c.access.Lock()
		c.writing = false
		if c.sendQueue.Len() == 0 {
			c.sendIdle.Broadcast()
		}
		c.access.Unlock()
		if err != nil {
			if !c.isClosing() {
				log.Warnf("write to %s failed: %s", c.remoteName(), err.Error())
			}
			c.Close()
			return
		}
	}
}

// Flush blocks until every queued message is written or the connection is closed
func (c *Conn) Flush() {
	c.access.Lock()
	for (c.sendQueue.Len() > 0 || c.writing) && !c.closing {
		c.sendIdle.Wait()
	}
	c.access.Unlock()
}

// Close closes the connection, queued messages not yet written are dropped
func (c *Conn) Close() error {
	c.access.Lock()
	if c.closing {
		c.access.Unlock()
		return nil
	}
	c.closing = true
	c.sendQueue.Clear()
	c.sendReady.Broadcast()
	c.sendIdle.Broadcast()
	c.access.Unlock()
	return c.c.Close()
}
