package slimweb

import (
	"net"
	"time"

	"github.com/majestrate/slimweb/lib/bittorrent/extensions"
	"github.com/majestrate/slimweb/lib/bittorrent/peerwire"
	"github.com/majestrate/slimweb/lib/common"
	"github.com/majestrate/slimweb/lib/log"
	t "github.com/majestrate/slimweb/lib/translate"
	"github.com/pkg/errors"
)

var ErrTimeout = errors.New("timed out waiting for the peer's extended handshake")
var ErrPeerClosed = errors.New("peer closed the connection before its extended handshake")

// ProbeResult is the outcome of the wt_slimweb handshake with one peer
type ProbeResult struct {
	PeerID       common.PeerID
	Announcement *extensions.Announcement
	Warning      error
}

// Probe runs the handshakes over nc and waits for the peer's wt_slimweb announcement.
// A timeout of 0 waits until the peer answers or closes the connection.
func Probe(nc net.Conn, ih common.Infohash, opts extensions.SlimWebOptions, forceChoke bool, timeout time.Duration) (res ProbeResult, err error) {
	conn := peerwire.NewConn(nc, peerwire.Options{
		Infohash: ih,
		PeerID:   common.GeneratePeerID(),
	})
	defer conn.Close()

	var sw *extensions.SlimWeb
	sw, err = extensions.NewSlimWeb(opts, conn)
	if err != nil {
		return
	}
	if err = conn.Use(sw); err != nil {
		return
	}
	done := make(chan ProbeResult, 1)
	sw.OnAnnounce(func(a extensions.Announcement) {
		id, _ := sw.PeerID()
		select {
		case done <- ProbeResult{PeerID: id, Announcement: &a}:
		default:
		}
	})
	sw.OnWarning(func(e error) {
		id, _ := sw.PeerID()
		select {
		case done <- ProbeResult{PeerID: id, Warning: e}:
		default:
		}
	})

	var expired <-chan time.Time
	if timeout > 0 {
		nc.SetDeadline(time.Now().Add(timeout))
		expired = time.After(timeout)
	}
	if err = conn.Handshake(); err != nil {
		return
	}
	closed := make(chan error, 1)
	go func() {
		e := conn.Run()
		if e != nil {
			log.Debugf("probe read loop ended: %s", e)
		}
		closed <- e
	}()

	select {
	case res = <-done:
	case <-expired:
		err = ErrTimeout
		return
	case e := <-closed:
		// handlers run on the read loop, an event sent before it ended wins
		select {
		case res = <-done:
			return
		default:
		}
		var ne net.Error
		if errors.As(e, &ne) && ne.Timeout() {
			err = ErrTimeout
		} else {
			err = ErrPeerClosed
		}
		return
	}
	if forceChoke {
		sw.ForceChoke()
		conn.Flush()
	}
	return
}

// ServePeer answers one inbound connection with wt_slimweb until it closes
func ServePeer(nc net.Conn, newSlimWeb func(extensions.Wire) (*extensions.SlimWeb, error), forceChoke bool) error {
	conn := peerwire.NewConn(nc, peerwire.Options{
		PeerID: common.GeneratePeerID(),
	})
	defer conn.Close()
	addr := nc.RemoteAddr().String()

	sw, err := newSlimWeb(conn)
	if err != nil {
		return err
	}
	if err = conn.Use(sw); err != nil {
		return err
	}
	sw.OnAnnounce(func(a extensions.Announcement) {
		log.Info(t.T("peer %s announced client=%q type=%q payload=%q", addr, a.ClientVer, a.TorrentType, a.Payload))
		if forceChoke {
			sw.ForceChoke()
		}
	})
	sw.OnWarning(func(e error) {
		log.Warnf("%s %s: %s", extensions.EventWarning, addr, t.E(e))
	})

	if err = conn.Handshake(); err != nil {
		return err
	}
	return conn.Run()
}
