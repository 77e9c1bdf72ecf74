package config

import (
	"os"

	"github.com/alyu/configparser"
	"github.com/majestrate/slimweb/lib/log"
)

const EnvLogLevel = "SLIMWEB_LOG_LEVEL"

type LogConfig struct {
	Level string
}

func (cfg *LogConfig) Load(s *configparser.Section) error {
	cfg.Level = get(s, "level", "info")
	return nil
}

func (cfg *LogConfig) Save(s *configparser.Section) error {
	s.Add("level", cfg.Level)
	return nil
}

func (cfg *LogConfig) LoadEnv() {
	lvl := os.Getenv(EnvLogLevel)
	if lvl != "" {
		cfg.Level = lvl
	}
}

// Apply sets the global log level
func (cfg *LogConfig) Apply() error {
	return log.SetLevel(cfg.Level)
}
