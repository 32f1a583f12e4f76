// Package loginlimit fornece os adapters HTTP (chi) do limitador de login.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: motor de decisão + fachada com fail-open, sem net/http
//   - infra: store Redis (sorted set + bloqueio com TTL), monitor de conexão, stats
//   - loginlimit (este pacote): rotas /rate-limit, middleware Guard, log de requests
//
// Fluxo de um login:
//
//  1. Guard (ou POST /rate-limit/check) consulta CheckRateLimit(email)
//  2. Se negado, responde 429 com Retry-After e a mensagem localizada
//  3. Se permitido, o handler de login autentica no store de credenciais
//  4. Falha -> RecordFailedAttempt(email); sucesso -> ResetRateLimit(email)
//
// Variáveis de ambiente do binário (cmd/server) controlam Redis e política,
// como REDIS_ADDR, RATE_MAX_ATTEMPTS, RATE_WINDOW e RATE_TEMP_BLOCK.
package loginlimit
