package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/luizpinheirodev/twitter-translate-bot/internal/config"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/models"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/resilience"
)

const (
	// TwitterService names the platform executor in errors and logs.
	TwitterService = "twitter"

	recentSearchPath = "/tweets/search/recent"
	publishPath      = "/tweets"
	tweetFields      = "created_at,author_id"
)

// HeaderSigner produces the Authorization header for a write call.
type HeaderSigner interface {
	Header(httpMethod, rawURL string, requestParams map[string]string) (string, error)
}

// TwitterClient reads recent posts of an account and publishes new ones.
type TwitterClient struct {
	baseURL     string
	bearerToken string
	signer      HeaderSigner
	exec        *resilience.Executor
	log         *zap.Logger
}

// NewTwitterClient creates a client for the platform API rooted at cfg.BaseURL.
func NewTwitterClient(cfg config.TwitterConfig, signer HeaderSigner, exec *resilience.Executor, logger *zap.Logger) *TwitterClient {
	return &TwitterClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		bearerToken: cfg.BearerToken,
		signer:      signer,
		exec:        exec,
		log:         logger.Named("twitter"),
	}
}

// FetchNewItems returns the account's original posts newer than sinceID.
// An empty sinceID fetches whatever the platform still has available.
func (c *TwitterClient) FetchNewItems(ctx context.Context, accountID, sinceID string) (resilience.Result[models.SearchResponse], error) {
	query := url.Values{}
	query.Set("query", fmt.Sprintf("from:%s -is:reply -is:retweet", accountID))
	query.Set("tweet.fields", tweetFields)
	if sinceID != "" {
		query.Set("since_id", sinceID)
	}
	endpoint := c.baseURL + recentSearchPath + "?" + query.Encode()

	c.log.Debug("getting posts", zap.String("account_id", accountID), zap.String("since_id", sinceID))

	return resilience.Execute[models.SearchResponse](ctx, c.exec, accountID, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
}

// PublishItem creates a post with text. Each attempt is signed anew.
func (c *TwitterClient) PublishItem(ctx context.Context, text string) (resilience.Result[models.PublishResult], error) {
	body, err := json.Marshal(models.PublishRequest{Text: text})
	if err != nil {
		return resilience.Result[models.PublishResult]{}, fmt.Errorf("twitter: encode post: %w", err)
	}
	endpoint := c.baseURL + publishPath

	res, err := resilience.Execute[models.PublishResponse](ctx, c.exec, text, func(ctx context.Context) (*http.Request, error) {
		authorization, err := c.signer.Header(http.MethodPost, endpoint, map[string]string{})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", authorization)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil || !res.Present {
		return resilience.Result[models.PublishResult]{}, err
	}
	return resilience.Result[models.PublishResult]{Value: res.Value.Data, Present: true}, nil
}
