package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultURL é o endpoint de transcrição da Groq.
const DefaultURL = "https://api.groq.com/openai/v1/audio/transcriptions"

// Response é a resposta do upstream já lida por inteiro.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

type Client struct {
	url     string
	apiKey  string
	hc      *http.Client
	timeout time.Duration
	pacer   *rate.Limiter
	log     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithTimeout limita a chamada inteira (conexão + leitura do corpo). 0 = sem limite.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithPacer espaça as chamadas ao upstream num token bucket global (todas as chaves
// de cliente somadas). A request espera pela vez; rps <= 0 desliga.
func WithPacer(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.pacer = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.pacer = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func New(url, apiKey string, opts ...Option) *Client {
	c := &Client{
		url:    url,
		apiKey: apiKey,
		hc:     &http.Client{},
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) URL() string { return c.url }

// Transcribe faz o POST com Authorization: Bearer <chave> e o Content-Type do cliente
// (multipart com o boundary original). O contexto da request de entrada deve ser
// repassado: cliente desconectado cancela a chamada.
// contentType vazio não envia Content-Type nenhum ao upstream.
func (c *Client) Transcribe(ctx context.Context, contentType string, body []byte) (Response, error) {
	if c.pacer != nil {
		if err := c.pacer.Wait(ctx); err != nil {
			return Response{}, &Error{Kind: KindTransport, Err: fmt.Errorf("pacer wait: %w", err)}
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, &Error{Kind: KindTransport, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return Response{}, &Error{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, &Error{Kind: KindBody, Err: err}
	}

	out := Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.logAPIError(out, time.Since(start))
	} else {
		c.log.Debug("upstream transcription done",
			zap.Int("status", out.Status),
			zap.Int("bytes_in", len(body)),
			zap.Int("bytes_out", len(data)),
			zap.Duration("took", time.Since(start)))
	}
	return out, nil
}

// logAPIError registra o erro no formato OpenAI ({"error":{"type","message"}}) quando
// der para decodificar. O corpo repassado ao cliente não muda.
func (c *Client) logAPIError(resp Response, took time.Duration) {
	fields := []zap.Field{
		zap.Int("status", resp.Status),
		zap.Duration("took", took),
	}

	var apiErr openai.ErrorResponse
	if err := json.Unmarshal(resp.Body, &apiErr); err == nil && apiErr.Error != nil {
		fields = append(fields,
			zap.String("error_type", apiErr.Error.Type),
			zap.String("error_message", apiErr.Error.Message))
	}
	c.log.Warn("upstream returned error status", fields...)
}
