// Command stt-fake imita o endpoint de transcrição da Groq para validar o gateway localmente.
//
//	FAKE_API_KEY=sk-local go run ./teste-validacao/stt-fake
//	UPSTREAM_URL=http://localhost:8081/openai/v1/audio/transcriptions GROQ_API_KEY=sk-local go run ./cmd/gateway
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const transcriptionsPath = "/openai/v1/audio/transcriptions"

func main() {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("FAKE_LISTEN_ADDR", ":8081")
	v.SetDefault("FAKE_API_KEY", "sk-local")
	v.SetDefault("FAKE_DELAY", time.Duration(0))

	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	addr := v.GetString("FAKE_LISTEN_ADDR")
	log.Info("stt-fake listening",
		zap.String("addr", addr),
		zap.String("path", transcriptionsPath),
		zap.Duration("delay", v.GetDuration("FAKE_DELAY")))

	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(v.GetString("FAKE_API_KEY"), v.GetDuration("FAKE_DELAY"), log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal("stt-fake stopped", zap.Error(err))
	}
}

func newRouter(apiKey string, delay time.Duration, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post(transcriptionsPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+apiKey {
			writeJSON(w, http.StatusUnauthorized, openai.ErrorResponse{Error: &openai.APIError{
				Message: "Invalid API Key",
				Type:    "invalid_request_error",
			}})
			log.Warn("rejected credential")
			return
		}

		n, err := io.Copy(io.Discard, r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, openai.ErrorResponse{Error: &openai.APIError{
				Message: "could not read request body",
				Type:    "invalid_request_error",
			}})
			return
		}

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		log.Info("transcription",
			zap.Int64("bytes", n),
			zap.String("content_type", r.Header.Get("Content-Type")))
		writeJSON(w, http.StatusOK, openai.AudioResponse{
			Text: fmt.Sprintf("[fake transcription of %d bytes]", n),
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, _ := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
