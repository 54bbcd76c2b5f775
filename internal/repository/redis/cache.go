package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rrens/finance-chat/internal/domain"
)

const (
	classificationPrefix = "classify:"
	classificationTTL    = 10 * time.Minute
)

type cachedClassification struct {
	AgentType  domain.AgentType `json:"agentType"`
	Confidence float64          `json:"confidence"`
	Reasoning  string           `json:"reasoning"`
}

// ClassificationCache memoizes LLM routing verdicts by normalized query text
type ClassificationCache struct {
	client *Client
	ttl    time.Duration
}

// NewClassificationCache creates a new classification cache
func NewClassificationCache(client *Client) *ClassificationCache {
	return &ClassificationCache{client: client, ttl: classificationTTL}
}

func classificationKey(text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return classificationPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached verdict for text, or nil on a miss
func (c *ClassificationCache) Get(ctx context.Context, text string) (*domain.ClassificationResult, error) {
	data, err := c.client.rdb.Get(ctx, classificationKey(text)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read classification: %w", err)
	}

	var cached cachedClassification
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("failed to unmarshal classification: %w", err)
	}

	return &domain.ClassificationResult{
		AgentType:  cached.AgentType,
		Confidence: cached.Confidence,
		Reasoning:  cached.Reasoning,
	}, nil
}

// Set caches a verdict for text. Latency is not stored.
func (c *ClassificationCache) Set(ctx context.Context, text string, result *domain.ClassificationResult) error {
	data, err := json.Marshal(cachedClassification{
		AgentType:  result.AgentType,
		Confidence: result.Confidence,
		Reasoning:  result.Reasoning,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal classification: %w", err)
	}

	return c.client.rdb.Set(ctx, classificationKey(text), data, c.ttl).Err()
}

// FlushAll removes all cached verdicts
func (c *ClassificationCache) FlushAll(ctx context.Context) (int64, error) {
	pattern := classificationPrefix + "*"
	var cursor uint64
	var deleted int64

	for {
		keys, nextCursor, err := c.client.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			count, err := c.client.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("failed to delete keys: %w", err)
			}
			deleted += count
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}
