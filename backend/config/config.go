package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type TCP struct {
	Host string
	Port int
}

type JWT struct {
	Secret string
	Issuer string
	ExpMin int
}

type Config struct {
	TCP          TCP
	DBPath       string
	SettingsFile string
	JWT          JWT
}

// Load reads backend configuration. The settings file is where the external
// options surface writes snapshots; the backend watches it for changes.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	dataDir := filepath.Join(os.TempDir(), "shortsguard")
	v.SetDefault("backend.host", "127.0.0.1")
	v.SetDefault("backend.port", 9320)
	v.SetDefault("backend.db_path", filepath.Join(dataDir, "authority.db"))
	v.SetDefault("backend.settings_file", "")
	v.SetDefault("backend.jwt.secret", "")
	v.SetDefault("backend.jwt.issuer", "shortsguard")
	v.SetDefault("backend.jwt.exp_min", 24*60)
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// missing file: run on defaults
	}

	cfg := &Config{
		TCP:          TCP{Host: v.GetString("backend.host"), Port: v.GetInt("backend.port")},
		DBPath:       v.GetString("backend.db_path"),
		SettingsFile: v.GetString("backend.settings_file"),
		JWT: JWT{
			Secret: v.GetString("backend.jwt.secret"),
			Issuer: v.GetString("backend.jwt.issuer"),
			ExpMin: v.GetInt("backend.jwt.exp_min"),
		},
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("backend.jwt.secret is required")
	}
	return cfg, nil
}

func (c *Config) Addr() string { return fmt.Sprintf("%s:%d", c.TCP.Host, c.TCP.Port) }
