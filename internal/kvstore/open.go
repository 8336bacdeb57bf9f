package kvstore

import (
	"fmt"

	"stockwatch/pkg/utils"
)

// Open returns the backend selected in the store configuration.
func Open(cfg utils.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return OpenSQLite(cfg.Path)
	case "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(RedisOptions{Addr: cfg.RedisAddr, DB: cfg.RedisDB, Prefix: cfg.RedisPrefix}), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
