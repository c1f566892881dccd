// Package application decide limite por minuto e vagas de concorrência.
//
// Service.Decide devolve uma Decision (com Retry-After já arredondado) e o
// erro do limiter, sem escolher política; ConcurrencyService.Acquire separa
// saturação (ErrSaturated) de cliente que desistiu (ctx.Err()).
// Nada aqui importa net/http.
package application
