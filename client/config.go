package client

import (
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads the client's {uri, tls} configuration file (§6).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
