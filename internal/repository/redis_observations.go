package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"SentiTrade/internal/domain/models"
	applogger "SentiTrade/pkg/logger"
	"SentiTrade/pkg/util"

	"github.com/redis/go-redis/v9"
)

const (
	observationKeyPrefix = "sentiment"
	maxContentRunes      = 500
)

// RedisObservations reads and writes observation hashes under
// sentiment:<SYMBOL>:<source>:<iso-timestamp>. Keys are unprefixed because the
// ingestion side shares them.
type RedisObservations struct {
	client    redis.UniversalClient
	ttl       time.Duration
	scanCount int64
	logger    *applogger.Logger
	now       func() time.Time
}

func NewRedisObservations(client redis.UniversalClient, ttl time.Duration, logger *applogger.Logger) *RedisObservations {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisObservations{client: client, ttl: ttl, scanCount: 200, logger: logger, now: time.Now}
}

type observationKey struct {
	key string
	at  time.Time
}

func (r *RedisObservations) Recent(ctx context.Context, instrument, source string, since time.Time, limit int) ([]models.SentimentObservation, error) {
	pattern := fmt.Sprintf("%s:%s:%s:*", observationKeyPrefix, instrument, source)
	var keys []observationKey
	iter := r.client.Scan(ctx, 0, pattern, r.scanCount).Iterator()
	for iter.Next(ctx) {
		k := observationKey{key: iter.Val()}
		k.at, _ = keyTime(k.key)
		if !since.IsZero() && !k.at.IsZero() && k.at.Before(since) {
			continue
		}
		keys = append(keys, k)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	sortKeysNewestFirst(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HGetAll(ctx, k.key)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("hgetall %s: %w", pattern, err)
	}

	out := make([]models.SentimentObservation, 0, len(keys))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			// expired between scan and read
			continue
		}
		obs, ok := parseObservationHash(fields, instrument, source, keys[i].at)
		if !ok {
			r.logger.Debug("skipping malformed observation", applogger.String("key", keys[i].key))
			continue
		}
		out = append(out, obs)
	}
	return out, nil
}

func (r *RedisObservations) SaveObservation(ctx context.Context, obs *models.SentimentObservation) error {
	at := obs.ObservedAt
	if at.IsZero() {
		at = r.now()
	}
	key := ObservationKey(obs.Instrument, obs.Source, at)

	meta := "{}"
	if len(obs.Metadata) > 0 {
		b, err := json.Marshal(obs.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		meta = string(b)
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"symbol":           obs.Instrument,
		"source":           obs.Source,
		"content":          util.Truncate(obs.Content, maxContentRunes),
		"sentiment_score":  strconv.FormatFloat(obs.Score, 'f', -1, 64),
		"confidence_score": strconv.FormatFloat(obs.Confidence, 'f', -1, 64),
		"timestamp":        util.FormatISO(at),
		"metadata":         meta,
	})
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store observation %s: %w", key, err)
	}
	return nil
}

func (r *RedisObservations) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// ObservationKey builds the hash key for one observation.
func ObservationKey(instrument, source string, at time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", observationKeyPrefix, instrument, source, util.FormatISO(at))
}

// keyTime extracts the timestamp suffix. The ISO suffix itself contains colons.
func keyTime(key string) (time.Time, bool) {
	parts := strings.SplitN(key, ":", 4)
	if len(parts) != 4 {
		return time.Time{}, false
	}
	return util.ParseTime(parts[3])
}

// sortKeysNewestFirst orders keys by timestamp; keys without one sort last.
func sortKeysNewestFirst(keys []observationKey) {
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i].at, keys[j].at
		if a.IsZero() != b.IsZero() {
			return !a.IsZero()
		}
		if a.Equal(b) {
			return keys[i].key > keys[j].key
		}
		return a.After(b)
	})
}

func parseObservationHash(fields map[string]string, instrument, source string, keyAt time.Time) (models.SentimentObservation, bool) {
	score, ok := util.ParseFloat(fields["sentiment_score"])
	if !ok {
		return models.SentimentObservation{}, false
	}
	obs := models.SentimentObservation{
		Instrument: instrument,
		Source:     source,
		Score:      score,
		Content:    fields["content"],
	}
	if c, ok := util.ParseFloat(fields["confidence_score"]); ok {
		obs.Confidence = c
	}
	obs.ObservedAt = util.ParseTimeDefault(fields["timestamp"], keyAt)
	if raw := fields["metadata"]; raw != "" && raw != "{}" {
		var meta map[string]interface{}
		if json.Unmarshal([]byte(raw), &meta) == nil {
			obs.Metadata = meta
		}
	}
	return obs, true
}
