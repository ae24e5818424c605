package server

import (
	"os"

	"gopkg.in/yaml.v3"
)

// TLSConfig names the certificate material a server binds TLS transport
// schemes with (§6 config options). TLS provisioning itself is out of
// scope (§1); this only wires the paths through to tls.LoadX509KeyPair.
type TLSConfig struct {
	CertPath string `yaml:"cert_path"`
	KeyPath  string `yaml:"key_path"`
}

// Config is the server's {uri, tls, with_lower_layer, graphql_port}
// configuration object (§6), loaded from a YAML file the same way the
// teacher never needed to (hcas took its root path as a bare CLI flag)
// but bringyour-connect's daemons and i5heu-ouroboros-db's node config
// both do.
type Config struct {
	URI            string     `yaml:"uri"`
	TLS            *TLSConfig `yaml:"tls"`
	WithLowerLayer bool       `yaml:"with_lower_layer"`
	GraphQLPort    *int       `yaml:"graphql_port"`
}

// LoadConfig reads and parses a server config file.
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
