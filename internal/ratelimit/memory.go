package ratelimit

import (
	"sync"
	"time"
)

// memorySweepSize is the bucket count above which expired buckets are dropped.
const memorySweepSize = 4096

type memoryBucket struct {
	hits    int
	resetAt time.Time
}

// memoryCounter counts hits per key in windows opened by the first hit.
type memoryCounter struct {
	mu      sync.Mutex
	buckets map[string]memoryBucket
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{buckets: make(map[string]memoryBucket)}
}

// Hit records one hit and returns the hits in the current window and when it closes.
func (m *memoryCounter) Hit(key string, window time.Duration, now time.Time) (int, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.buckets[key]
	if !ok || !now.Before(bucket.resetAt) {
		bucket = memoryBucket{resetAt: now.Add(window)}
	}
	bucket.hits++
	m.buckets[key] = bucket

	if len(m.buckets) > memorySweepSize {
		for k, b := range m.buckets {
			if !now.Before(b.resetAt) {
				delete(m.buckets, k)
			}
		}
	}
	return bucket.hits, bucket.resetAt
}
