package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/luizpinheirodev/twitter-translate-bot/internal/config"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/models"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/resilience"
)

const (
	// TranslateService names the translation executor in errors and logs.
	TranslateService = "translate"

	translatePath = "/language/translate/v2"
)

// TranslateClient calls the RapidAPI deep-translate endpoint.
type TranslateClient struct {
	baseURL string
	host    string
	key     string
	exec    *resilience.Executor
}

// NewTranslateClient creates a client sending every call through exec.
func NewTranslateClient(cfg config.TranslateConfig, exec *resilience.Executor) *TranslateClient {
	return &TranslateClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		host:    cfg.Host,
		key:     cfg.Key,
		exec:    exec,
	}
}

// Translate returns text translated from sourceLang to targetLang.
func (c *TranslateClient) Translate(ctx context.Context, text, sourceLang, targetLang string) (resilience.Result[string], error) {
	body, err := json.Marshal(models.TranslateRequest{Q: text, Source: sourceLang, Target: targetLang})
	if err != nil {
		return resilience.Result[string]{}, fmt.Errorf("translate: encode request: %w", err)
	}
	endpoint := c.baseURL + translatePath

	res, err := resilience.Execute[models.TranslateResponse](ctx, c.exec, text, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-RapidAPI-Host", c.host)
		req.Header.Set("X-RapidAPI-Key", c.key)
		return req, nil
	})
	if err != nil || !res.Present {
		return resilience.Result[string]{}, err
	}

	translated := res.Value.Data.Translations.TranslatedText
	if translated == "" {
		return resilience.Result[string]{}, nil
	}
	return resilience.Result[string]{Value: translated, Present: true}, nil
}
