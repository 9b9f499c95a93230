// Package upstream encaminha o áudio para a API de transcrição (Groq, compatível com
// OpenAI) injetando a chave do servidor.
//
// O corpo vai como bytes opacos: nada é parseado nem validado. Qualquer status do
// upstream, inclusive 4xx/5xx, volta como Response; só falhas de transporte ou de
// leitura do corpo viram *Error.
package upstream
