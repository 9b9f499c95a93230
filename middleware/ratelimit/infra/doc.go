// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - WindowStore: contador de janela fixa por chave, com janitor para chaves expiradas
//   - ChanPool: semáforo simples para limite de concorrência
//   - MemoryStatsStore / RedisStatsStore / NatsStatsStore: destinos das estatísticas
package infra
