package bucketing

import (
	"fmt"
	"hash"
	"sync"

	"github.com/spaolacci/murmur3"

	"resource-auth-service/internal/config"
)

// BucketingManager assigns challenge keys to a fixed number of Redis key
// namespaces so that hot resources spread across the keyspace and SCAN-based
// tooling can operate per bucket.
type BucketingManager struct {
	challengeBuckets int
	hasherPool       sync.Pool
}

func NewBucketingManager(cfg *config.Config) *BucketingManager {
	bm := &BucketingManager{
		challengeBuckets: cfg.Auth.ChallengeKeyBuckets,
	}
	if bm.challengeBuckets <= 0 {
		bm.challengeBuckets = 1
	}

	bm.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}

	return bm
}

// ChallengeBucket returns the consistent bucket (0..buckets-1) for a
// (resource, email) challenge key.
func (bm *BucketingManager) ChallengeBucket(resourceID int, email string) int {
	return bm.getBucket(fmt.Sprintf("%d:%s", resourceID, email), bm.challengeBuckets)
}

func (bm *BucketingManager) getBucket(identifier string, buckets int) int {
	h := bm.hasherPool.Get().(hash.Hash64)
	defer bm.hasherPool.Put(h)

	h.Reset()
	_, _ = h.Write([]byte(identifier))
	return int(h.Sum64() % uint64(buckets))
}
