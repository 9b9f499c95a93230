// Package application contém os casos de uso do gateway de transcrição para
// rate limit e limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(key) retorna uma Decision (allow/deny + retry-after) e
// ConcurrencyService.Acquire reserva uma vaga para a chamada ao upstream.
package application
