package ratelimit

import (
	"math"
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string {
	// sem notação científica para valores comuns
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// retryAfterSeconds arredonda para cima: Retry-After=0 faria o cliente bater de novo
// ainda dentro da janela.
func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return formatInt(secs)
}
