package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/majestrate/slimweb/lib/bittorrent/extensions"
	"github.com/majestrate/slimweb/lib/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.Load(filepath.Join(t.TempDir(), "missing.ini")))
	assert.Equal(t, version.Version(), cfg.SlimWeb.ClientVer)
	assert.Equal(t, DefaultTorrentType, cfg.SlimWeb.TorrentType)
	assert.Equal(t, "", cfg.SlimWeb.Payload)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, DefaultListenAddr, cfg.Peer.Listen)
	assert.False(t, cfg.Peer.ForceChoke)
}

func TestSaveLoad(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "slimweb.ini")
	var cfg Config
	require.NoError(t, cfg.Load(""))
	cfg.SlimWeb.TorrentType = "video/mp4"
	cfg.SlimWeb.Payload = "abc"
	cfg.Log.Level = "debug"
	cfg.Peer.Addr = "127.0.0.1:51413"
	cfg.Peer.Infohash = "0123456789abcdef0123456789abcdef01234567"
	cfg.Peer.ForceChoke = true
	require.NoError(t, cfg.Save(fname))

	var loaded Config
	require.NoError(t, loaded.Load(fname))
	assert.Equal(t, cfg, loaded)

	ih, err := loaded.Peer.ParsedInfohash()
	require.NoError(t, err)
	assert.Equal(t, cfg.Peer.Infohash, ih.Hex())
}

func TestLoadEnv(t *testing.T) {
	t.Setenv(EnvClientVer, "env-1.0")
	t.Setenv(EnvTorrentType, "text/html")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvPeerAddr, "10.0.0.1:6881")

	var cfg Config
	require.NoError(t, cfg.Load(""))
	assert.Equal(t, "env-1.0", cfg.SlimWeb.ClientVer)
	assert.Equal(t, "text/html", cfg.SlimWeb.TorrentType)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "10.0.0.1:6881", cfg.Peer.Addr)
}

func TestSlimWebOptions(t *testing.T) {
	cfg := SlimWebConfig{ClientVer: "1.0", TorrentType: "video/mp4", Payload: "abc"}
	assert.Equal(t, extensions.SlimWebOptions{ClientVer: "1.0", TorrentType: "video/mp4", Payload: "abc"}, cfg.Options())
}

func TestLoadSlimWebSectionKeys(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "handwritten.ini")
	ini := "[slimweb]\nclientVer = 3.1\nTorrentType = text/html\nunknown = ignored\n"
	require.NoError(t, os.WriteFile(fname, []byte(ini), 0600))

	var cfg Config
	require.NoError(t, cfg.Load(fname))
	assert.Equal(t, "3.1", cfg.SlimWeb.ClientVer)
	assert.Equal(t, "text/html", cfg.SlimWeb.TorrentType)
	assert.Equal(t, "", cfg.SlimWeb.Payload)
}

func TestBadInfohash(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "bad.ini")
	cfg := Config{
		SlimWeb: SlimWebConfig{ClientVer: "1.0", TorrentType: "x", Payload: "p"},
		Log:     LogConfig{Level: "info"},
		Peer:    PeerConfig{Infohash: "nothex", Listen: DefaultListenAddr},
	}
	require.NoError(t, cfg.Save(fname))
	var loaded Config
	assert.Error(t, loaded.Load(fname))
}
