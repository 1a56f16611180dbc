package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	BackendHost string
	BackendPort int
	TokenPath   string
	LogPath     string
	Debounce    time.Duration
}

var cfg AppConfig

// Init loads agent configuration from config/agent.yaml with sane defaults;
// a missing file just means defaults.
func Init() AppConfig {
	defaultTokenDir := filepath.Join(os.TempDir(), "shortsguard")

	v := viper.New()
	v.SetConfigFile("config/agent.yaml")
	v.SetConfigType("yaml")

	v.SetDefault("agent.backend.host", "127.0.0.1")
	v.SetDefault("agent.backend.port", 9320)
	v.SetDefault("agent.token_path", filepath.Join(defaultTokenDir, "agent.token"))
	v.SetDefault("agent.log_path", "")
	v.SetDefault("agent.debounce_ms", 100)
	_ = v.ReadInConfig()

	cfg = AppConfig{
		BackendHost: v.GetString("agent.backend.host"),
		BackendPort: v.GetInt("agent.backend.port"),
		TokenPath:   v.GetString("agent.token_path"),
		LogPath:     v.GetString("agent.log_path"),
		Debounce:    time.Duration(v.GetInt("agent.debounce_ms")) * time.Millisecond,
	}
	return cfg
}

func Get() AppConfig { return cfg }

func BackendAddr() string { return fmt.Sprintf("%s:%d", cfg.BackendHost, cfg.BackendPort) }
