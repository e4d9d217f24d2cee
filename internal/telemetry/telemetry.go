// Package telemetry stores and serves sensor readings. The latest reading
// per device lives in Redis with a freshness TTL; every reading is also
// appended to Postgres so history survives cache eviction.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"smartfarm/internal/db"
	"smartfarm/internal/models"
)

const latestTTL = 24 * time.Hour

// Store is the telemetry read/write path shared by the ingest handler, the
// rule engine and the plant-health analyzer.
type Store struct {
	rdb *redis.Client
	db  *db.DB
}

func NewStore(rdb *redis.Client, database *db.DB) *Store {
	return &Store{rdb: rdb, db: database}
}

func latestKey(deviceID string) string {
	return fmt.Sprintf("sensor:latest:%s", deviceID)
}

// Record saves one reading: cache write first, then the history append.
// A Redis failure is logged and tolerated since Postgres keeps the data.
func (s *Store) Record(ctx context.Context, snapshot *models.SensorSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, latestKey(snapshot.DeviceID), raw, latestTTL).Err(); err != nil {
		log.Printf("TELEMETRY: Failed to cache reading for %s: %v", snapshot.DeviceID, err)
	}
	return s.db.InsertSensorReading(ctx, snapshot)
}

// LatestSensorData returns a device's newest reading, nil when the device
// has never reported. Cache misses fall through to Postgres.
func (s *Store) LatestSensorData(ctx context.Context, deviceID string) (*models.SensorSnapshot, error) {
	raw, err := s.rdb.Get(ctx, latestKey(deviceID)).Bytes()
	if err == nil {
		var snapshot models.SensorSnapshot
		if jsonErr := json.Unmarshal(raw, &snapshot); jsonErr == nil {
			return &snapshot, nil
		}
		log.Printf("TELEMETRY: Corrupt cache entry for %s, falling back to database", deviceID)
	} else if err != redis.Nil {
		log.Printf("TELEMETRY: Cache read for %s failed: %v", deviceID, err)
	}

	snapshot, err := s.db.GetLatestDeviceSnapshot(ctx, deviceID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return snapshot, nil
}

// HasRecentData reports whether a device has a reading newer than the
// given window.
func (s *Store) HasRecentData(ctx context.Context, deviceID string, within time.Duration) (bool, error) {
	snapshot, err := s.LatestSensorData(ctx, deviceID)
	if err != nil {
		return false, err
	}
	if snapshot == nil {
		return false, nil
	}
	return time.Since(snapshot.Timestamp) <= within, nil
}

// LatestFarmSnapshot returns the newest reading across a farm's devices,
// nil when the farm has none.
func (s *Store) LatestFarmSnapshot(ctx context.Context, farmID int64) (*models.SensorSnapshot, error) {
	snapshot, err := s.db.GetLatestFarmSnapshot(ctx, farmID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return snapshot, nil
}

// FarmSnapshotAt returns the newest farm reading at or before the given
// time, nil when nothing that old exists.
func (s *Store) FarmSnapshotAt(ctx context.Context, farmID int64, at time.Time) (*models.SensorSnapshot, error) {
	snapshot, err := s.db.GetFarmSnapshotAt(ctx, farmID, at)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return snapshot, nil
}
