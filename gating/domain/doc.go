// Package domain define os tipos do gate de requisições: contas, chaves de API,
// tiers e a taxonomia de erros, além dos contratos dos stores.
//
// Não depende de net/http nem de um backend específico.
package domain
