// Package gateway monta o handler HTTP do proxy de transcrição.
//
// Ordem de avaliação de cada request:
//
//  1. OPTIONS em qualquer path: preflight CORS (204 ou 403)
//  2. Qualquer coisa diferente de POST <Path>: 404 sem corpo, antes de olhar a origem
//  3. Origem diferente da permitida: 403 sem corpo
//  4. Rate limit por cliente: 429 {"error":"Rate limit exceeded"}
//  5. (opcional) limite de concorrência: 503 {"error":"Too many concurrent requests"}
//  6. Proxy para o upstream; falha de rede/leitura vira 502 {"error":"Proxy error"}
package gateway
