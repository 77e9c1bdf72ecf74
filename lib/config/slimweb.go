package config

import (
	"os"
	"strings"

	"github.com/alyu/configparser"
	"github.com/majestrate/slimweb/lib/bittorrent/extensions"
	"github.com/majestrate/slimweb/lib/version"
)

const DefaultTorrentType = "application/octet-stream"

const EnvClientVer = "SLIMWEB_CLIENT_VER"
const EnvTorrentType = "SLIMWEB_TORRENT_TYPE"
const EnvPayload = "SLIMWEB_PAYLOAD"

// SlimWebConfig is what we announce to peers in the wt_slimweb handshake
type SlimWebConfig struct {
	ClientVer   string
	TorrentType string
	Payload     string
}

// Load decodes the section as extension options, option names match case insensitively
func (cfg *SlimWebConfig) Load(s *configparser.Section) error {
	raw := map[string]interface{}{
		"clientver":   version.Version(),
		"torrenttype": DefaultTorrentType,
	}
	if s != nil {
		for k, v := range s.Options() {
			raw[strings.ToLower(k)] = v
		}
	}
	opts, err := extensions.DecodeSlimWebOptions(raw)
	if err != nil {
		return err
	}
	cfg.ClientVer = opts.ClientVer
	cfg.TorrentType = opts.TorrentType
	cfg.Payload = opts.Payload
	return nil
}

func (cfg *SlimWebConfig) Save(s *configparser.Section) error {
	s.Add("clientver", cfg.ClientVer)
	s.Add("torrenttype", cfg.TorrentType)
	s.Add("payload", cfg.Payload)
	return nil
}

func (cfg *SlimWebConfig) LoadEnv() {
	if v := os.Getenv(EnvClientVer); v != "" {
		cfg.ClientVer = v
	}
	if v := os.Getenv(EnvTorrentType); v != "" {
		cfg.TorrentType = v
	}
	if v, ok := os.LookupEnv(EnvPayload); ok {
		cfg.Payload = v
	}
}

// Options gets the extension options for this config
func (cfg *SlimWebConfig) Options() extensions.SlimWebOptions {
	return extensions.SlimWebOptions{
		ClientVer:   cfg.ClientVer,
		TorrentType: cfg.TorrentType,
		Payload:     cfg.Payload,
	}
}
