package infra

import (
	"github.com/cespare/xxhash/v2"

	"extract-gateway/middleware/ratelimit/domain"
)

const defaultShards = 32

// shardFor escolhe o shard da chave. Cada shard tem seu próprio mutex,
// então contas diferentes raramente disputam o mesmo lock.
func shardFor(key domain.Key, n int) int {
	return int(xxhash.Sum64String(string(key)) % uint64(n))
}
