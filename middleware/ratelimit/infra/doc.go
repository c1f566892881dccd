// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - FixedWindowStore: janela fixa por conta em memória (shards por xxhash)
//   - RedisWindowStore: janela fixa compartilhada via script Lua no Redis
//   - TokenBucketStore: token bucket por conta usando golang.org/x/time/rate
//   - Janitor: limpeza periódica com Start/Stop explícitos
//   - ChanPool: semáforo simples para limite de concorrência
//   - MemoryStatsStore / RedisStatsStore: contadores de decisão do gate
package infra
