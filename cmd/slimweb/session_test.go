package slimweb

import (
	"net"
	"testing"
	"time"

	"github.com/majestrate/slimweb/lib/bittorrent/extensions"
	"github.com/majestrate/slimweb/lib/bittorrent/peerwire"
	"github.com/majestrate/slimweb/lib/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testInfohash = common.Infohash{0x01, 0x02, 0x03}

func TestProbeServePeer(t *testing.T) {
	ca, cb := net.Pipe()
	served := make(chan error, 1)
	go func() {
		served <- ServePeer(cb, extensions.NewSlimWebFactory(extensions.SlimWebOptions{
			ClientVer:   "2.0",
			TorrentType: "text/html",
			Payload:     "hello",
		}), false)
	}()

	res, err := Probe(ca, testInfohash, extensions.SlimWebOptions{ClientVer: "1.0", TorrentType: "video/mp4"}, false, 5*time.Second)
	require.NoError(t, err)
	assert.Nil(t, res.Warning)
	require.NotNil(t, res.Announcement)
	assert.Equal(t, extensions.Announcement{ClientVer: "2.0", TorrentType: "text/html", Payload: "hello"}, *res.Announcement)

	select {
	case err = <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after the probe closed")
	}
}

func TestProbeConfigurationError(t *testing.T) {
	ca, cb := net.Pipe()
	defer cb.Close()
	_, err := Probe(ca, testInfohash, extensions.SlimWebOptions{ClientVer: "1.0"}, false, time.Second)
	var cfgErr *extensions.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "torrentType", cfgErr.Option)
}

func TestProbeForceChokesPeerWithoutSlimWeb(t *testing.T) {
	ca, cb := net.Pipe()
	choked := make(chan struct{}, 1)
	peer := peerwire.NewConn(cb, peerwire.Options{
		PeerID: common.GeneratePeerID(),
		Callbacks: peerwire.Callbacks{
			ReadMessage: func(_ *peerwire.Conn, msg common.WireMessage) {
				if msg.MessageID() == common.Choke {
					choked <- struct{}{}
				}
			},
		},
	})
	defer peer.Close()
	go func() {
		if peer.Handshake() == nil {
			peer.Run()
		}
	}()

	res, err := Probe(ca, testInfohash, extensions.SlimWebOptions{ClientVer: "1.0", TorrentType: "video/mp4"}, true, 5*time.Second)
	require.NoError(t, err)
	var capErr *extensions.PeerCapabilityError
	assert.True(t, errors.As(res.Warning, &capErr))
	assert.Nil(t, res.Announcement)

	select {
	case <-choked:
	case <-time.After(5 * time.Second):
		t.Fatal("peer was not choked")
	}
}

func TestProbeTimeout(t *testing.T) {
	ca, cb := net.Pipe()
	defer cb.Close()
	go func() {
		// answer the base handshake without the extension bit, then stay silent
		buf := make([]byte, 68)
		cb.Read(buf)
		reply := make([]byte, 68)
		copy(reply, buf)
		reply[25] = 0
		cb.Write(reply)
		for {
			if _, err := cb.Read(buf); err != nil {
				return
			}
		}
	}()
	_, err := Probe(ca, testInfohash, extensions.SlimWebOptions{ClientVer: "1.0", TorrentType: "video/mp4"}, false, 200*time.Millisecond)
	assert.Equal(t, ErrTimeout, err)
}

func TestProbePeerClosedWithoutTimeout(t *testing.T) {
	ca, cb := net.Pipe()
	go func() {
		// answer the base handshake without the extension bit, then hang up
		buf := make([]byte, 68)
		cb.Read(buf)
		reply := make([]byte, 68)
		copy(reply, buf)
		reply[25] = 0
		cb.Write(reply)
		cb.Close()
	}()
	errs := make(chan error, 1)
	go func() {
		_, err := Probe(ca, testInfohash, extensions.SlimWebOptions{ClientVer: "1.0", TorrentType: "video/mp4"}, false, 0)
		errs <- err
	}()
	select {
	case err := <-errs:
		assert.Equal(t, ErrPeerClosed, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Probe did not return after the peer closed")
	}
}
