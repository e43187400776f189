package backends

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tourdesk/pkg/config"
	"tourdesk/pkg/logger"
	"tourdesk/pkg/store"
	"tourdesk/pkg/store/dynamostore"
	"tourdesk/pkg/store/memstore"
	"tourdesk/pkg/store/redisstore"
)

// Open builds the backend named by cfg.Backend: memory, redis or dynamodb.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (store.Store, error) {
	log = logger.OrDefault(log)

	switch backend := strings.ToLower(strings.TrimSpace(cfg.Backend)); backend {
	case "", "memory":
		s := memstore.New(memstore.WithLogger(log))
		if strings.TrimSpace(cfg.Janitor) != "" {
			if err := s.StartJanitor(cfg.Janitor); err != nil {
				return nil, err
			}
		}
		log.Info("Store opened", "backend", "memory", "janitor", cfg.Janitor)
		return s, nil
	case "redis":
		s, err := redisstore.Open(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		log.Info("Store opened", "backend", backend, "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
		return s, nil
	case "dynamodb":
		s, err := dynamostore.Open(ctx, cfg.DynamoDB)
		if err != nil {
			return nil, err
		}
		log.Info("Store opened", "backend", backend, "table", cfg.DynamoDB.Table)
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Backend)
	}
}
