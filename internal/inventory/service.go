package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/modavie/checkout-service/internal/catalog"
	kafkax "github.com/modavie/checkout-service/internal/kafka"
	"github.com/modavie/checkout-service/internal/orders"
	"github.com/modavie/checkout-service/internal/redisx"
)

// Service keeps the Redis stock cache in step with committed orders.
// Postgres stays the source of truth; a missed event only means a cache
// entry lives until its TTL.
type Service struct {
	Catalog     *catalog.Repo
	Redis       *redis.Client
	ServiceName string
}

// HandleOrderCreated is mounted as the consumer handler for order.created.
func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderCreated {
		return nil
	}

	// dedup by event id
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(p.Items))
	for _, it := range p.Items {
		ids = append(ids, it.ProductID)
	}
	stocks, err := s.Catalog.StockByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for id, stock := range stocks {
		key := fmt.Sprintf(redisx.KeyProductStock, id)
		_ = s.Redis.Set(ctx, key, stock, redisx.TTLStockCache).Err()
		if stock == 0 {
			log.Printf("product %s sold out (order %s)", id, p.OrderID)
		}
	}

	// the cached listing still shows pre-order stock
	_ = s.Redis.Del(ctx, redisx.KeyProductList).Err()
	return nil
}
