package config

import (
	"os"

	"github.com/alyu/configparser"
	"github.com/pkg/errors"
)

type Config struct {
	SlimWeb SlimWebConfig
	Log     LogConfig
	Peer    PeerConfig
}

// Configurable interface for entity serializable to/from config parser section
type Configurable interface {
	Load(s *configparser.Section) error
	Save(c *configparser.Section) error
	LoadEnv()
}

func (cfg *Config) sections() map[string]Configurable {
	return map[string]Configurable{
		"slimweb": &cfg.SlimWeb,
		"log":     &cfg.Log,
		"peer":    &cfg.Peer,
	}
}

// get reads an option from a section that may be nil
func get(s *configparser.Section, key, fallback string) string {
	if s != nil && s.Exists(key) {
		return s.ValueOf(key)
	}
	return fallback
}

func boolString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Load loads a config from file by filename, a missing file gives the defaults
func (cfg *Config) Load(fname string) (err error) {
	var c *configparser.Configuration
	if fname != "" {
		if _, err = os.Stat(fname); err == nil {
			c, err = configparser.Read(fname)
		}
		if err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "read config %s", fname)
		}
		err = nil
	}
	for sect, conf := range cfg.sections() {
		var s *configparser.Section
		if c != nil {
			s, _ = c.Section(sect)
		}
		err = conf.Load(s)
		if err != nil {
			return errors.Wrapf(err, "section [%s]", sect)
		}
		conf.LoadEnv()
	}
	return
}

// Save saves a loaded config to file by filename
func (cfg *Config) Save(fname string) (err error) {
	c := configparser.NewConfiguration()
	for sect, conf := range cfg.sections() {
		s := c.NewSection(sect)
		err = conf.Save(s)
		if err != nil {
			return
		}
	}
	err = configparser.Save(c, fname)
	return
}
