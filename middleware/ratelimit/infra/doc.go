// Package infra contém implementações concretas dos contratos de domain.
//
//   - WindowStore: janela deslizante por chave em memória, com alarme de ociosidade
//   - RedisWindowStore: a mesma janela num ZSET do Redis via script Lua
//   - ChanPool: semáforo para limite de concorrência
//   - MemoryStatsStore / RedisStatsStore: contadores de decisões
package infra
