package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFake_TranscribesWithValidKey(t *testing.T) {
	h := newRouter("sk-local", 0, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, transcriptionsPath, strings.NewReader("12345"))
	req.Header.Set("Authorization", "Bearer sk-local")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got openai.AudioResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, "[fake transcription of 5 bytes]", got.Text)
}

func TestFake_RejectsWrongKey(t *testing.T) {
	h := newRouter("sk-local", 0, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, transcriptionsPath, strings.NewReader("x"))
	req.Header.Set("Authorization", "Bearer nope")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	var got openai.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.NotNil(t, got.Error)
	require.Equal(t, "Invalid API Key", got.Error.Message)
}
