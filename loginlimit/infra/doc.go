// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - RedisStore: janela deslizante em sorted set + bloqueio com TTL (go-redis)
//   - MemoryStore: mesma semântica em memória, para testes e desenvolvimento
//   - Monitor: estado tri-state da conexão Redis com reconexão em backoff
//   - RedisStatsStore / MemoryStatsStore: contadores de decisão
package infra
