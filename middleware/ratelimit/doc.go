// Package ratelimit fornece adapters HTTP (net/http) para rate limit por cliente
// e limite de concorrência, além dos backends de rate limit por conta usados
// pelo gate (ver subpacotes).
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: implementações concretas (janela fixa, token bucket, Redis, semáforo)
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Limite por IP (opcional) barra enxurrada antes de tocar no store de chaves
//  2. Limite de concorrência segura quantas requisições estão em voo
//  3. O gate (middleware/gate) autentica, checa quota e o limite por conta
//  4. Se permitido, chama o reverse proxy; o gate faz o commit da quota no fim
package ratelimit
