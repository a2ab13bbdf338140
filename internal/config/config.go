// Package config loads a node's static cluster configuration (its own id,
// data directory, listen address, and peer map) the way pkg/config in the
// bunbase monorepo loads service configuration: through viper, with
// an environment-variable overlay. Unlike pkg/config's manual os.Environ
// scan, this uses viper's own SetEnvPrefix/AutomaticEnv machinery directly,
// since a YAML file (not a .env file) is the primary source here.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ClusterConfig is a single node's view of static cluster membership and
// its own tunables. Peers never includes NodeID itself.
type ClusterConfig struct {
	NodeID      string            `mapstructure:"node_id"`
	DataDir     string            `mapstructure:"data_dir"`
	ListenAddr  string            `mapstructure:"listen_addr"`
	MetricsAddr string            `mapstructure:"metrics_addr"`
	Peers       map[string]string `mapstructure:"peers"`

	ElectionMinTimeoutMs int `mapstructure:"election_min_timeout_ms"`
	ElectionMaxTimeoutMs int `mapstructure:"election_max_timeout_ms"`
	HeartbeatMs          int `mapstructure:"heartbeat_ms"`
	RPCTimeoutMs         int `mapstructure:"rpc_timeout_ms"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Load reads a YAML or TOML cluster config file at path, then overlays any
// RAFTKV_-prefixed environment variables (e.g. RAFTKV_NODE_ID,
// RAFTKV_LISTEN_ADDR).
func Load(path string) (*ClusterConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetEnvPrefix("raftkv")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg ClusterConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if cfg.NodeID == "" {
		return nil, fmt.Errorf("config: node_id is required")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./raft-data")
	v.SetDefault("election_min_timeout_ms", 150)
	v.SetDefault("election_max_timeout_ms", 300)
	v.SetDefault("heartbeat_ms", 50)
	v.SetDefault("rpc_timeout_ms", 200)
	v.SetDefault("log_level", "INFO")
	v.SetDefault("log_format", "json")
}

// PeerIDs returns the peer node ids in a stable (sorted) order, suitable
// for raft.Config.Peers.
func (c *ClusterConfig) PeerIDs() []string {
	ids := make([]string, 0, len(c.Peers))
	for id := range c.Peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *ClusterConfig) ElectionMinTimeout() time.Duration {
	return time.Duration(c.ElectionMinTimeoutMs) * time.Millisecond
}

func (c *ClusterConfig) ElectionMaxTimeout() time.Duration {
	return time.Duration(c.ElectionMaxTimeoutMs) * time.Millisecond
}

func (c *ClusterConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatMs) * time.Millisecond
}

func (c *ClusterConfig) RPCTimeout() time.Duration {
	return time.Duration(c.RPCTimeoutMs) * time.Millisecond
}
