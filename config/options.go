// Copyright 2026 The valkeygo Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config decodes a client's YAML configuration into typed
// Options, built on the confengine wrapper over
// github.com/elastic/go-ucfg.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/valkeygo/valkeygo/cluster"
	"github.com/valkeygo/valkeygo/conn"
	"github.com/valkeygo/valkeygo/confengine"
	"github.com/valkeygo/valkeygo/logger"
	"github.com/valkeygo/valkeygo/node"
	"github.com/valkeygo/valkeygo/pool"
)

// TLSOptions configures transport security for every dialed connection.
type TLSOptions struct {
	Enabled            bool   `config:"enabled"`
	CertFile           string `config:"certFile"`
	KeyFile            string `config:"keyFile"`
	CAFile             string `config:"caFile"`
	ServerName         string `config:"serverName"`
	InsecureSkipVerify bool   `config:"insecureSkipVerify"`
}

// Build constructs a *tls.Config, or nil if TLS is disabled.
func (t TLSOptions) Build() (*tls.Config, error) {
	if !t.Enabled {
		return nil, nil
	}

	cfg := &tls.Config{ServerName: t.ServerName, InsecureSkipVerify: t.InsecureSkipVerify}

	if t.CertFile != "" && t.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if t.CAFile != "" {
		pem, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates parsed from %s", t.CAFile)
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

// Options is the full decoded configuration for a Client: which
// endpoints to contact, how to authenticate, pool and timeout sizing,
// and cluster-mode routing behavior.
type Options struct {
	// Addresses lists "host:port" contact points. In standalone mode
	// only the first is used; in cluster mode all are used as initial
	// discovery contacts.
	Addresses []string `config:"addresses"`
	Cluster   bool     `config:"cluster"`
	Network   string   `config:"network"`

	Username string `config:"username"`
	Password string `config:"password"`

	PoolMin      int           `config:"poolMin"`
	PoolMax      int           `config:"poolMax"`
	MaxIdleAge   time.Duration `config:"maxIdleAge"`
	LeaseTimeout time.Duration `config:"leaseTimeout"`

	DialTimeout     time.Duration `config:"dialTimeout"`
	CommandTimeout  time.Duration `config:"commandTimeout"`
	BlockingTimeout time.Duration `config:"blockingTimeout"`

	TLS TLSOptions `config:"tls"`

	// ReadStrategy is one of "primary", "cycle_replicas", or
	// "random_replica"; only meaningful in cluster mode.
	ReadStrategy    string        `config:"readStrategy"`
	MaxRedirects    int           `config:"maxRedirects"`
	TryAgainBackoff time.Duration `config:"tryAgainBackoff"`
	RefreshInterval time.Duration `config:"refreshInterval"`

	Logger logger.Options `config:"logger"`
}

// Default returns Options with every field at its zero-friendly
// production default.
func Default() Options {
	return Options{
		Network:         "tcp",
		PoolMax:         10,
		MaxIdleAge:      10 * time.Minute,
		DialTimeout:     5 * time.Second,
		CommandTimeout:  3 * time.Second,
		ReadStrategy:    "primary",
		MaxRedirects:    16,
		TryAgainBackoff: 20 * time.Millisecond,
		RefreshInterval: 5 * time.Minute,
	}
}

// Load reads and decodes a YAML configuration file at path over the
// production defaults.
func Load(path string) (Options, error) {
	opts := Default()
	cfg, err := confengine.LoadConfigPath(path)
	if err != nil {
		return Options{}, err
	}
	if err := cfg.Unpack(&opts); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// LoadContent decodes raw YAML bytes over the production defaults.
func LoadContent(b []byte) (Options, error) {
	opts := Default()
	cfg, err := confengine.LoadContent(b)
	if err != nil {
		return Options{}, err
	}
	if err := cfg.Unpack(&opts); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func (o Options) readStrategy() cluster.ReadStrategy {
	switch o.ReadStrategy {
	case "cycle_replicas":
		return cluster.StrategyCycleReplicas
	case "random_replica":
		return cluster.StrategyRandomReplica
	default:
		return cluster.StrategyPrimary
	}
}

// ToConnOptions builds the per-connection handshake/timeout options
// every dialed node shares.
func (o Options) ToConnOptions() conn.Options {
	return conn.Options{
		DialTimeout:     o.DialTimeout,
		CommandTimeout:  o.CommandTimeout,
		BlockingTimeout: o.BlockingTimeout,
		Username:        o.Username,
		Password:        o.Password,
	}
}

// ToPoolOptions builds the pool sizing options every node's pool
// shares.
func (o Options) ToPoolOptions() pool.Options {
	return pool.Options{
		Min:          o.PoolMin,
		Max:          o.PoolMax,
		MaxIdleAge:   o.MaxIdleAge,
		LeaseTimeout: o.LeaseTimeout,
	}
}

// ToNodeConfig builds a node.Config for addr, the configuration the
// standalone client dials its single server with.
func (o Options) ToNodeConfig(addr string) (node.Config, error) {
	tlsCfg, err := o.TLS.Build()
	if err != nil {
		return node.Config{}, err
	}
	return node.Config{
		Network: o.Network,
		Addr:    addr,
		TLS:     tlsCfg,
		Pool:    o.ToPoolOptions(),
		Conn:    o.ToConnOptions(),
	}, nil
}

// ToClusterOptions builds cluster.Options from Options, using
// Addresses as the initial discovery contact list. It validates the
// TLS configuration once up front so every later per-node dial is
// infallible on that front.
func (o Options) ToClusterOptions() (cluster.Options, error) {
	tlsCfg, err := o.TLS.Build()
	if err != nil {
		return cluster.Options{}, err
	}
	return cluster.Options{
		Discovery: o.Addresses,
		NodeConfig: func(addr string) node.Config {
			return node.Config{Network: o.Network, Addr: addr, TLS: tlsCfg, Pool: o.ToPoolOptions(), Conn: o.ToConnOptions()}
		},
		ReadStrategy:    o.readStrategy(),
		MaxRedirects:    o.MaxRedirects,
		TryAgainBackoff: o.TryAgainBackoff,
		RefreshInterval: o.RefreshInterval,
	}, nil
}
