// Package domain define contratos e tipos de domínio para o rate limit por janela fixa,
// o limite de concorrência e as estatísticas de decisão.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar a regra de contagem
// (janela fixa por cliente) de detalhes de infraestrutura.
package domain
