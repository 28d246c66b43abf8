package converter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notex/pkg/config"
	errs "notex/pkg/errors"
)

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"NoFences", `\section{Intro}`, `\section{Intro}`},
		{"LatexFence", "```latex\n\\section{Intro}\n```", `\section{Intro}`},
		{"BareFence", "```\n\\section{Intro}\n```", `\section{Intro}`},
		{"SurroundingWhitespace", "  \n\\section{Intro}\n  ", `\section{Intro}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanResponse(tt.in))
		})
	}
}

func TestDummyDeterminism(t *testing.T) {
	d := NewDummy()

	a, err := d.Convert(context.Background(), []byte("page image"))
	require.NoError(t, err)
	b, err := d.Convert(context.Background(), []byte("page image"))
	require.NoError(t, err)

	assert.Equal(t, a, b, "identical input must produce identical output")
	assert.NotEmpty(t, a)
	assert.Equal(t, "dummy", d.Name())
}

func TestDummyCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDummy().Convert(ctx, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFactory(t *testing.T) {
	t.Run("Dummy", func(t *testing.T) {
		c, err := New(&config.ConverterConfig{Type: "dummy"}, "", nil)
		require.NoError(t, err)
		assert.Equal(t, "dummy", c.Name())
	})

	t.Run("OpenRouterNeedsKey", func(t *testing.T) {
		_, err := New(&config.ConverterConfig{Type: "openrouter"}, "", nil)
		assert.Error(t, err)
	})

	t.Run("OpenRouterWithKey", func(t *testing.T) {
		c, err := New(&config.ConverterConfig{Type: "openrouter"}, "sk-test", nil)
		require.NoError(t, err)
		assert.Equal(t, "openrouter", c.Name())
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := New(&config.ConverterConfig{Type: "telepathy"}, "", nil)
		assert.Error(t, err)
	})
}

func openRouterAgainst(url string) *OpenRouter {
	return NewOpenRouter(&config.ConverterConfig{
		Endpoint: url,
		Model:    "test/model",
		Timeout:  5 * time.Second,
	}, "sk-test", nil)
}

func completionResponse(content string) string {
	resp := map[string]interface{}{
		"id": "gen-1",
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}, "finish_reason": "stop"},
		},
	}
	out, _ := json.Marshal(resp)
	return string(out)
}

func TestOpenRouterConvert(t *testing.T) {
	var gotAuth string
	var gotBody apiRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(completionResponse("```latex\n\\section{Page}\nx^2\n```")))
	}))
	defer server.Close()

	c := openRouterAgainst(server.URL)
	latex, err := c.Convert(context.Background(), []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)

	assert.Equal(t, "\\section{Page}\nx^2", latex)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "test/model", gotBody.Model)
	require.Len(t, gotBody.Messages, 1)
	require.Len(t, gotBody.Messages[0].Content, 2)
	assert.Contains(t, gotBody.Messages[0].Content[1].ImageURL.URL, "data:image/png;base64,")
}

func TestOpenRouterStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   errs.ErrorType
	}{
		{http.StatusTooManyRequests, errs.ErrorTypeRateLimit},
		{http.StatusUnauthorized, errs.ErrorTypeAuth},
		{http.StatusPaymentRequired, errs.ErrorTypeQuota},
		{http.StatusBadRequest, errs.ErrorTypeInvalidInput},
		{http.StatusInternalServerError, errs.ErrorTypeTransient},
		{http.StatusBadGateway, errs.ErrorTypeTransient},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := openRouterAgainst(server.URL).Convert(context.Background(), []byte("img"))
			require.Error(t, err)
			assert.Equal(t, tt.want, errs.TypeOf(err))
		})
	}
}

func TestOpenRouterEmbeddedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"gen-1","error":{"message":"rate limited","code":429}}`))
	}))
	defer server.Close()

	_, err := openRouterAgainst(server.URL).Convert(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeRateLimit, errs.TypeOf(err))
}

func TestOpenRouterEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"gen-1","choices":[]}`))
	}))
	defer server.Close()

	_, err := openRouterAgainst(server.URL).Convert(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeTransient, errs.TypeOf(err))
}

func TestOpenRouterEmptyOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionResponse("```latex\n```")))
	}))
	defer server.Close()

	_, err := openRouterAgainst(server.URL).Convert(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeTransient, errs.TypeOf(err))
}

func TestOpenRouterUnreachableEndpoint(t *testing.T) {
	c := openRouterAgainst("http://127.0.0.1:1")

	_, err := c.Convert(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeTransient, errs.TypeOf(err))
}
