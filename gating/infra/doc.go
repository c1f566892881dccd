// Package infra contém os backends do gate: stores de contas/chaves
// (memória, Redis, Postgres), o hasher bcrypt e o loader do arquivo de tiers.
//
// Todos os stores implementam domain.Store com read-modify-write atômico
// por registro:
//   - MemoryStore: mutex por shard (xxhash do id)
//   - RedisStore: WATCH/MULTI com retry em conflito
//   - PostgresStore: SELECT ... FOR UPDATE numa transação
package infra
