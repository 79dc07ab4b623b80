package store

import (
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
)

const consulPrefix = "meshaid/"

// ConsulStore keeps keys under meshaid/<key> in a Consul KV.
type ConsulStore struct {
	kv     *consulapi.KV
	prefix string
}

// NewConsulStore builds a client for addr; an empty addr uses the Consul defaults
// (CONSUL_HTTP_ADDR or 127.0.0.1:8500).
func NewConsulStore(addr string) (*ConsulStore, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	cli, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return &ConsulStore{kv: cli.KV(), prefix: consulPrefix}, nil
}

func (s *ConsulStore) Get(key string) ([]byte, error) {
	pair, _, err := s.kv.Get(s.prefix+key, nil)
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return nil, ErrNotFound
	}
	return pair.Value, nil
}

func (s *ConsulStore) Put(key string, value []byte) error {
	_, err := s.kv.Put(&consulapi.KVPair{Key: s.prefix + key, Value: value}, nil)
	return err
}

func (s *ConsulStore) Close() error { return nil }
