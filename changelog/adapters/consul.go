package adapters

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/hashicorp/consul/api"

	"github.com/mwantia/docstore/changelog"
)

// ConsulConfig configures the Consul KV adapter.
type ConsulConfig struct {
	// Address of the Consul server (default: "127.0.0.1:8500")
	Address string
	// Token for Consul ACL authentication (optional)
	Token      string
	Datacenter string
	// Prefix for all keys (default: "docstore/changelog")
	Prefix string
}

// Consul stores the latest snapshot and a history entry per snapshot in Consul KV:
//
//	<prefix>/latest           -> snapshot of the most recent file
//	<prefix>/history/<name>   -> snapshot per file
type Consul struct {
	kv     *api.KV
	prefix string
}

func NewConsul(config *ConsulConfig) (*Consul, error) {
	if config == nil {
		config = &ConsulConfig{}
	}

	clientConfig := api.DefaultConfig()
	if config.Address != "" {
		clientConfig.Address = config.Address
	}
	if config.Token != "" {
		clientConfig.Token = config.Token
	}
	if config.Datacenter != "" {
		clientConfig.Datacenter = config.Datacenter
	}

	client, err := api.NewClient(clientConfig)
	if err != nil {
		return nil, err
	}

	prefix := strings.Trim(config.Prefix, "/")
	if prefix == "" {
		prefix = "docstore/changelog"
	}

	return &Consul{
		kv:     client.KV(),
		prefix: prefix,
	}, nil
}

func (*Consul) Name() string {
	return "consul"
}

func (c *Consul) Notify(ctx context.Context, snapshot changelog.Snapshot) error {
	value, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	opts := (&api.WriteOptions{}).WithContext(ctx)
	for _, key := range []string{c.historyKey(snapshot.Name), c.latestKey()} {
		if _, err := c.kv.Put(&api.KVPair{Key: key, Value: value}, opts); err != nil {
			return err
		}
	}
	return nil
}

// Latest returns the most recently announced snapshot, or nil when none exists.
func (c *Consul) Latest(ctx context.Context) (*changelog.Snapshot, error) {
	pair, _, err := c.kv.Get(c.latestKey(), (&api.QueryOptions{}).WithContext(ctx))
	if err != nil || pair == nil {
		return nil, err
	}

	var snapshot changelog.Snapshot
	if err := json.Unmarshal(pair.Value, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c *Consul) Close() error {
	// Nothing to clean up - Consul client is stateless
	return nil
}

func (c *Consul) latestKey() string {
	return c.prefix + "/latest"
}

func (c *Consul) historyKey(name string) string {
	return c.prefix + "/history/" + name
}
