package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luizpinheirodev/twitter-translate-bot/internal/config"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/models"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/oauth"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/resilience"
)

type signCall struct {
	method string
	url    string
	params map[string]string
}

type fakeSigner struct {
	calls []signCall
	err   error
}

func (f *fakeSigner) Header(httpMethod, rawURL string, requestParams map[string]string) (string, error) {
	f.calls = append(f.calls, signCall{method: httpMethod, url: rawURL, params: requestParams})
	if f.err != nil {
		return "", f.err
	}
	return `OAuth oauth_signature="fake"`, nil
}

func testExecutor(client *http.Client, service string) *resilience.Executor {
	return resilience.NewExecutor(service, client, resilience.Policy{
		Timeout:      2 * time.Second,
		MaxRetries:   1,
		FirstBackoff: time.Millisecond,
		MaxBackoff:   time.Millisecond,
	}, zap.NewNop())
}

func newTestTwitterClient(server *httptest.Server, signer HeaderSigner) *TwitterClient {
	cfg := config.TwitterConfig{BaseURL: server.URL + "/", BearerToken: "bearer-token"}
	return NewTwitterClient(cfg, signer, testExecutor(server.Client(), TwitterService), zap.NewNop())
}

func TestTwitterClient_FetchNewItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/tweets/search/recent", r.URL.Path)
		assert.Equal(t, "Bearer bearer-token", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.Equal(t, "from:44196397 -is:reply -is:retweet", q.Get("query"))
		assert.Equal(t, "created_at,author_id", q.Get("tweet.fields"))
		assert.Equal(t, "1500", q.Get("since_id"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"1502","author_id":"44196397","text":"hi","created_at":"2022-05-10T14:03:21.000Z"}],"meta":{"result_count":1,"newest_id":"1502"}}`))
	}))
	defer server.Close()

	client := newTestTwitterClient(server, &fakeSigner{})

	res, err := client.FetchNewItems(context.Background(), "44196397", "1500")

	require.NoError(t, err)
	require.True(t, res.Present)
	require.Len(t, res.Value.Data, 1)
	assert.Equal(t, models.Tweet{ID: "1502", AuthorID: "44196397", Text: "hi", CreatedAt: "2022-05-10T14:03:21.000Z"}, res.Value.Data[0])
	assert.Equal(t, 1, res.Value.Meta.ResultCount)
}

func TestTwitterClient_FetchNewItems_NoWatermark(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.URL.Query()["since_id"]
		assert.False(t, ok, "since_id must be omitted without a watermark")
		w.Write([]byte(`{"meta":{"result_count":0}}`))
	}))
	defer server.Close()

	client := newTestTwitterClient(server, &fakeSigner{})

	res, err := client.FetchNewItems(context.Background(), "44196397", "")

	require.NoError(t, err)
	require.True(t, res.Present)
	assert.Nil(t, res.Value.Data)
}

func TestTwitterClient_FetchNewItems_ClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestTwitterClient(server, &fakeSigner{})

	_, err := client.FetchNewItems(context.Background(), "44196397", "")

	assert.ErrorIs(t, err, resilience.ErrNotFound)
	assert.Contains(t, err.Error(), "44196397")

	var statusErr *resilience.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, TwitterService, statusErr.Service)
}

func TestTwitterClient_PublishItem(t *testing.T) {
	var gotAuth string
	var gotBody models.PublishRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tweets", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"99","text":"olá"}}`))
	}))
	defer server.Close()

	signer := &fakeSigner{}
	client := newTestTwitterClient(server, signer)

	res, err := client.PublishItem(context.Background(), "olá")

	require.NoError(t, err)
	require.True(t, res.Present)
	assert.Equal(t, models.PublishResult{ID: "99", Text: "olá"}, res.Value)
	assert.Equal(t, "olá", gotBody.Text)
	assert.Equal(t, `OAuth oauth_signature="fake"`, gotAuth)

	require.Len(t, signer.calls, 1)
	assert.Equal(t, http.MethodPost, signer.calls[0].method)
	assert.Equal(t, server.URL+"/tweets", signer.calls[0].url)
	assert.Empty(t, signer.calls[0].params)
}

func TestTwitterClient_PublishItem_SignsEveryAttempt(t *testing.T) {
	var auths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
		if len(auths) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"data":{"id":"1","text":"x"}}`))
	}))
	defer server.Close()

	signer, err := oauth.NewSigner(oauth.Credentials{
		ConsumerKey: "ck", ConsumerSecret: "cs", Token: "t", TokenSecret: "ts",
	})
	require.NoError(t, err)
	client := newTestTwitterClient(server, signer)

	_, err = client.PublishItem(context.Background(), "x")

	require.NoError(t, err)
	require.Len(t, auths, 2)
	for _, a := range auths {
		assert.True(t, strings.HasPrefix(a, `OAuth oauth_consumer_key="ck", oauth_token="t", oauth_signature_method="HMAC-SHA1"`), a)
	}
	assert.NotEqual(t, auths[0], auths[1])
}

func TestTwitterClient_PublishItem_SigningFailure(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	client := newTestTwitterClient(server, &fakeSigner{err: oauth.ErrSigning})

	_, err := client.PublishItem(context.Background(), "x")

	assert.True(t, errors.Is(err, oauth.ErrSigning))
	assert.Zero(t, calls)
}

func TestTwitterClient_PublishItem_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestTwitterClient(server, &fakeSigner{})

	res, err := client.PublishItem(context.Background(), "x")

	require.NoError(t, err)
	assert.False(t, res.Present)
}
