package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// VerdictCache memoizes judge responses in Redis so repeated runs over
// the same corpus skip the remote call. All failures are soft: a cache
// problem never fails a classification.
type VerdictCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewVerdictCache wraps an existing Redis client.
func NewVerdictCache(client *redis.Client, ttl time.Duration, logger *log.Logger) *VerdictCache {
	if logger == nil {
		logger = log.New(log.Writer(), "[CACHE] ", log.LstdFlags)
	}
	return &VerdictCache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(word string, sentences []string) string {
	h := sha256.New()
	h.Write([]byte(word))
	for _, s := range sentences {
		h.Write([]byte{0x1f})
		h.Write([]byte(s))
	}
	return "vocabmatch:verdicts:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns cached verdicts for a (word, sentences) group.
func (c *VerdictCache) Get(ctx context.Context, word string, sentences []string) ([]SentenceVerdict, bool) {
	raw, err := c.client.Get(ctx, cacheKey(word, sentences)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Printf("verdict cache get failed: %v", err)
		}
		cacheHits.WithLabelValues("miss").Inc()
		return nil, false
	}
	var verdicts []SentenceVerdict
	if err := json.Unmarshal(raw, &verdicts); err != nil {
		c.logger.Printf("verdict cache entry corrupt, ignoring: %v", err)
		cacheHits.WithLabelValues("miss").Inc()
		return nil, false
	}
	cacheHits.WithLabelValues("hit").Inc()
	return verdicts, true
}

// Put stores verdicts for a group.
func (c *VerdictCache) Put(ctx context.Context, word string, sentences []string, verdicts []SentenceVerdict) {
	raw, err := json.Marshal(verdicts)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(word, sentences), raw, c.ttl).Err(); err != nil {
		c.logger.Printf("verdict cache put failed: %v", err)
	}
}
