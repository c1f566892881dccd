// Package domain define contratos e tipos de domínio para rate limit por conta,
// limite de concorrência e estatísticas de decisão.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e trocar o backend do limiter
// (memória, Redis, token-bucket) sem mexer em quem chama.
package domain
