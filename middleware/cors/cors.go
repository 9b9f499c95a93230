// Package cors restringe o gateway a uma única origem de navegador.
//
// Preflight responde todo OPTIONS (qualquer path) e OriginGuard protege as rotas
// reais. Nos dois casos uma origem diferente recebe 403 sem corpo.
package cors

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const (
	HeaderAllowOrigin  = "Access-Control-Allow-Origin"
	HeaderAllowMethods = "Access-Control-Allow-Methods"
	HeaderAllowHeaders = "Access-Control-Allow-Headers"
)

type Options struct {
	// AllowedOrigin é comparada byte a byte com o header Origin.
	AllowedOrigin string
	AllowMethods  []string
	AllowHeaders  []string
	Logger        *zap.Logger
}

func (o Options) withDefaults() Options {
	if len(o.AllowMethods) == 0 {
		o.AllowMethods = []string{http.MethodPost, http.MethodOptions}
	}
	if len(o.AllowHeaders) == 0 {
		o.AllowHeaders = []string{"Content-Type"}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Headers devolve os headers CORS para a origem permitida.
func (o Options) Headers() http.Header {
	o = o.withDefaults()
	h := make(http.Header, 3)
	h.Set(HeaderAllowOrigin, o.AllowedOrigin)
	h.Set(HeaderAllowMethods, strings.Join(o.AllowMethods, ", "))
	h.Set(HeaderAllowHeaders, strings.Join(o.AllowHeaders, ", "))
	return h
}

func (o Options) allowed(r *http.Request) bool {
	// Origin ausente nunca bate: AllowedOrigin vazia é rejeitada na config
	return o.AllowedOrigin != "" && r.Header.Get("Origin") == o.AllowedOrigin
}

func copyHeaders(dst, src http.Header) {
	for k, vs := range src {
		dst[k] = append([]string(nil), vs...)
	}
}

func forbid(w http.ResponseWriter) {
	w.WriteHeader(http.StatusForbidden)
}

// Preflight responde OPTIONS em qualquer path: 204 + headers CORS para a origem
// permitida, 403 para qualquer outra. Outros métodos seguem para next.
func Preflight(opts Options) func(next http.Handler) http.Handler {
	opts = opts.withDefaults()
	headers := opts.Headers()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if !opts.allowed(r) {
				opts.Logger.Debug("preflight from foreign origin", zap.String("origin", r.Header.Get("Origin")))
				forbid(w)
				return
			}
			copyHeaders(w.Header(), headers)
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

// OriginGuard barra origens diferentes com 403 e, para a origem permitida,
// grava os headers CORS antes de chamar next, então qualquer resposta posterior
// (429, 502, resposta do upstream) sai com eles.
func OriginGuard(opts Options) func(next http.Handler) http.Handler {
	opts = opts.withDefaults()
	headers := opts.Headers()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !opts.allowed(r) {
				opts.Logger.Info("request from foreign origin rejected",
					zap.String("origin", r.Header.Get("Origin")),
					zap.String("path", r.URL.Path))
				forbid(w)
				return
			}
			copyHeaders(w.Header(), headers)
			next.ServeHTTP(w, r)
		})
	}
}
