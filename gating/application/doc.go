// Package application implementa os casos de uso do gate: emissão de chaves,
// autenticação, quota mensal/diária e gestão de contas.
//
// Só depende de gating/domain; os stores e o hasher entram por injeção.
package application
