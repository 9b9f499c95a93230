// Package ratelimit fornece adapters HTTP (net/http) para o rate limit por cliente
// e o limite de concorrência do gateway de transcrição.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: implementações concretas (janela fixa, semáforo, stats), detalhes de infraestrutura
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo no gateway (depois do CORS/origem):
//
//  1. Extrai a chave do cliente (CF-Connecting-IP, ou "unknown")
//  2. Chama a camada application para obter a decisão
//  3. Se bloqueado, chama OnReject (429 JSON no gateway)
//  4. Se permitido, segue para o limite de concorrência e o proxy
package ratelimit
