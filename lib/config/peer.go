package config

import (
	"os"

	"github.com/alyu/configparser"
	"github.com/majestrate/slimweb/lib/common"
)

const DefaultListenAddr = "127.0.0.1:6881"

const EnvPeerAddr = "SLIMWEB_PEER"

// PeerConfig is which peer to probe and where to listen for peers
type PeerConfig struct {
	Addr       string
	Infohash   string
	Listen     string
	ForceChoke bool
}

func (cfg *PeerConfig) Load(s *configparser.Section) error {
	cfg.Addr = get(s, "addr", "")
	cfg.Infohash = get(s, "infohash", "")
	cfg.Listen = get(s, "listen", DefaultListenAddr)
	cfg.ForceChoke = get(s, "forcechoke", "0") == "1"
	if cfg.Infohash != "" {
		_, err := common.DecodeInfohash(cfg.Infohash)
		return err
	}
	return nil
}

func (cfg *PeerConfig) Save(s *configparser.Section) error {
	s.Add("addr", cfg.Addr)
	s.Add("infohash", cfg.Infohash)
	s.Add("listen", cfg.Listen)
	s.Add("forcechoke", boolString(cfg.ForceChoke))
	return nil
}

func (cfg *PeerConfig) LoadEnv() {
	if v := os.Getenv(EnvPeerAddr); v != "" {
		cfg.Addr = v
	}
}

// ParsedInfohash gets the configured infohash, zero if unset
func (cfg *PeerConfig) ParsedInfohash() (common.Infohash, error) {
	if cfg.Infohash == "" {
		return common.Infohash{}, nil
	}
	return common.DecodeInfohash(cfg.Infohash)
}
