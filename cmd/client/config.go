package main

import (
	"crypto/tls"
	"fmt"

	"github.com/scott-cotton/cli"

	"github.com/msg555/vericas/client"
)

// MainConfig is shared by every subcommand: the connection parameters and
// the lazily-dialed client they produce.
type MainConfig struct {
	ConfigPath string
	URI        string
	Branch     string

	Main *cli.Command

	conn *client.Client
}

func stringOpt(name, desc string, dst *string) *cli.Opt {
	return &cli.Opt{
		Name:        name,
		Description: desc,
		Type: cli.NamedFuncOpt(func(_ *cli.Context, v string) (any, error) {
			*dst = v
			return v, nil
		}, "(value)"),
	}
}

func mainOpts(cfg *MainConfig) []*cli.Opt {
	return []*cli.Opt{
		stringOpt("config", "path to client config yaml (uri, tls)", &cfg.ConfigPath),
		stringOpt("uri", "override uri from the config file", &cfg.URI),
		stringOpt("branch", "branch to operate against (default: server's current branch)", &cfg.Branch),
	}
}

func (cfg *MainConfig) client() (*client.Client, error) {
	if cfg.conn != nil {
		return cfg.conn, nil
	}

	uri := cfg.URI
	var useTLS bool
	if cfg.ConfigPath != "" {
		fileCfg, err := client.LoadConfig(cfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		if uri == "" {
			uri = fileCfg.URI
		}
		useTLS = fileCfg.TLS
	}
	if uri == "" {
		return nil, fmt.Errorf("no server uri given (--uri or --config)")
	}

	var tlsConf *tls.Config
	if useTLS {
		tlsConf = &tls.Config{}
	}

	conn, err := client.Dial(uri, tlsConf)
	if err != nil {
		return nil, err
	}
	if cfg.Branch != "" {
		if err := conn.SetCurrentBranch(cfg.Branch); err != nil {
			conn.Close()
			return nil, err
		}
	}
	cfg.conn = conn
	return conn, nil
}
