// Package weather caches each farm's current outdoor conditions in Redis.
// An external collector writes the cache; the engine only reads it.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"smartfarm/internal/models"
)

const cacheTTL = 30 * time.Minute

type Service struct {
	rdb *redis.Client
}

func NewService(rdb *redis.Client) *Service {
	return &Service{rdb: rdb}
}

func cacheKey(farmID int64) string {
	return fmt.Sprintf("weather:current:%d", farmID)
}

// CurrentWeather returns the cached weather for a farm, nil when the cache
// is empty or expired.
func (s *Service) CurrentWeather(ctx context.Context, farmID int64) (*models.Weather, error) {
	raw, err := s.rdb.Get(ctx, cacheKey(farmID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("weather cache read for farm %d: %w", farmID, err)
	}

	var w models.Weather
	if err := json.Unmarshal(raw, &w); err != nil {
		log.Printf("WEATHER: Corrupt cache entry for farm %d: %v", farmID, err)
		return nil, nil
	}
	return &w, nil
}

// Set stores a farm's current weather.
func (s *Service) Set(ctx context.Context, w *models.Weather) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal weather: %w", err)
	}
	return s.rdb.Set(ctx, cacheKey(w.FarmID), raw, cacheTTL).Err()
}
