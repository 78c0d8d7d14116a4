// Package ratelimit contém os adapters HTTP do rate limit por janela
// deslizante e do limite de concorrência.
//
// Camadas:
//
//   - domain: contratos e tipos (sem net/http)
//   - application: casos de uso (decisão com fail-open, acquire com timeout)
//   - infra: janela em memória ou Redis, semáforo, estatísticas
//   - rpc: limiter remoto (servidor e cliente JSON sobre HTTP)
//   - ratelimit (este pacote): extração de chave, headers X-RateLimit-* e
//     middleware de concorrência
//
// Quem chama a decisão é o pipeline do gateway (middleware/gateway), que
// transforma o resultado em 429 ou segue para o upstream.
package ratelimit
