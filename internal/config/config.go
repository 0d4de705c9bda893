package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env            string        `yaml:"env" env:"ENV" env-default:"local"`
	Name           string        `yaml:"name" env:"NAME"`
	DiscoveryPort  int           `yaml:"discovery_port" env:"DISCOVERY_PORT" env-default:"9999"`
	BroadcastAddr  string        `yaml:"broadcast_addr" env:"BROADCAST_ADDR" env-default:"255.255.255.255"`
	BeaconInterval time.Duration `yaml:"beacon_interval" env:"BEACON_INTERVAL" env-default:"2s"`
	JournalPath    string        `yaml:"journal_path" env:"JOURNAL_PATH"`
}

func MustLoad() (*Config, string) {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadConfig(configPath), configPath
}

func MustLoadConfig(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic("cannot read config: " + err.Error())
	}

	return cfg
}

// Load reads and validates the config file. Used by MustLoad at startup
// and by the watcher on every reload, where a broken edit must not
// bring the process down.
func Load(configPath string) (*Config, error) {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, err
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Priority: flag > env > default.
// default value is empty string.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}
	return res
}
