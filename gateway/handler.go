package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"transcribe-gateway/middleware/cors"
	"transcribe-gateway/middleware/ratelimit"
	"transcribe-gateway/middleware/ratelimit/domain"
	"transcribe-gateway/middleware/requestlog"
	"transcribe-gateway/upstream"
)

const (
	DefaultPath          = "/transcribe"
	DefaultAllowedOrigin = "https://dayonebuilder.github.io"

	msgRateLimited = "Rate limit exceeded"
	msgProxyError  = "Proxy error"
	msgOverloaded  = "Too many concurrent requests"
)

var errRequestBody = errors.New("read request body")

// Transcriber é o upstream de transcrição (*upstream.Client em produção).
type Transcriber interface {
	Transcribe(ctx context.Context, contentType string, body []byte) (upstream.Response, error)
}

type Options struct {
	AllowedOrigin string
	// Path da única rota real. Padrão: /transcribe.
	Path     string
	Upstream Transcriber

	// RateLimit.Store nil desliga o rate limit. OnReject é sempre o do gateway.
	RateLimit ratelimit.Options
	// Concurrency.Max <= 0 desliga o limite. OnReject é sempre o do gateway.
	Concurrency ratelimit.ConcurrencyOptions

	// MaxBodyBytes > 0 corta corpos maiores (a leitura falha e vira 502).
	MaxBodyBytes int64
	Logger       *zap.Logger
}

type handler struct {
	upstream     Transcriber
	maxBodyBytes int64
	log          *zap.Logger
}

// NewHandler monta o roteador do gateway.
func NewHandler(opts Options) (http.Handler, error) {
	if opts.Upstream == nil {
		return nil, errors.New("gateway: upstream is required")
	}
	if opts.AllowedOrigin == "" {
		return nil, errors.New("gateway: allowed origin is required")
	}
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	h := &handler{
		upstream:     opts.Upstream,
		maxBodyBytes: opts.MaxBodyBytes,
		log:          opts.Logger,
	}

	corsOpts := cors.Options{AllowedOrigin: opts.AllowedOrigin, Logger: opts.Logger}

	rl := opts.RateLimit
	rl.OnReject = func(w http.ResponseWriter, _ *http.Request, _ domain.Decision) {
		writeJSONError(w, http.StatusTooManyRequests, msgRateLimited)
	}
	if rl.Logger == nil {
		rl.Logger = opts.Logger
	}

	cc := opts.Concurrency
	cc.OnReject = func(w http.ResponseWriter, _ *http.Request, status int) {
		writeJSONError(w, status, msgOverloaded)
	}
	if cc.Logger == nil {
		cc.Logger = opts.Logger
	}

	r := chi.NewRouter()
	r.Use(requestlog.RequestID)
	r.Use(requestlog.Logger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Preflight(corsOpts))

	// 404 sem corpo também para método errado no path certo (nunca 405)
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.With(
		cors.OriginGuard(corsOpts),
		ratelimit.Middleware(rl),
		ratelimit.ConcurrencyMiddleware(cc),
	).Post(opts.Path, h.transcribe)

	return r, nil
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNotFound)
}

func (h *handler) transcribe(w http.ResponseWriter, r *http.Request) {
	body, err := h.readBody(w, r)
	if err != nil {
		h.proxyError(w, r, err)
		return
	}

	resp, err := h.upstream.Transcribe(r.Context(), r.Header.Get("Content-Type"), body)
	if err != nil {
		h.proxyError(w, r, err)
		return
	}

	ct := resp.ContentType
	if ct == "" {
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(resp.Status)
	if _, err := w.Write(resp.Body); err != nil {
		h.log.Debug("client went away while relaying response",
			zap.String("request_id", requestlog.FromContext(r.Context())),
			zap.Error(err))
	}
}

func (h *handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	src := r.Body
	if h.maxBodyBytes > 0 {
		src = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	body, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errRequestBody, err)
	}
	return body, nil
}

// proxyError responde 502 genérico; a causa só vai para o log.
func (h *handler) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	kind := "request_body"
	var uerr *upstream.Error
	if errors.As(err, &uerr) {
		kind = uerr.Kind.String()
	}
	h.log.Error("proxy error",
		zap.String("request_id", requestlog.FromContext(r.Context())),
		zap.String("kind", kind),
		zap.Error(err))
	writeJSONError(w, http.StatusBadGateway, msgProxyError)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	data, _ := json.Marshal(errorBody{Error: msg})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
