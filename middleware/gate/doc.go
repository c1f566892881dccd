// Package gate é o middleware que decide, para cada requisição, se ela pode
// chegar ao serviço de extração.
//
// Ordem fixa: autentica a chave, checa a quota (uma leitura no store), checa
// o limite por minuto da conta, chama o próximo handler e só então faz o
// commit da quota. Qualquer falha vira uma resposta JSON tipada; falha de
// infraestrutura do próprio gate rejeita a requisição (fail-closed).
//
// Há dois adapters sobre o mesmo fluxo: Middleware (net/http) e Gin.
package gate
