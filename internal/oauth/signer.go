// Package oauth builds OAuth 1.0a (HMAC-SHA1) Authorization headers for write calls to the platform.
package oauth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	signatureMethod = "HMAC-SHA1"
	version         = "1.0"

	nonceLength   = 10
	nonceAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	paramConsumerKey     = "oauth_consumer_key"
	paramNonce           = "oauth_nonce"
	paramSignature       = "oauth_signature"
	paramSignatureMethod = "oauth_signature_method"
	paramTimestamp       = "oauth_timestamp"
	paramToken           = "oauth_token"
	paramVersion         = "oauth_version"
)

// ErrSigning marks a signer that cannot produce headers. It is a configuration
// problem and is never retried.
var ErrSigning = errors.New("oauth signing error")

// Credentials are the four secrets a signed request needs.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
}

// Signer produces Authorization headers. Only the nonce and timestamp vary between calls.
type Signer struct {
	creds  Credentials
	now    func() time.Time
	random io.Reader
}

// NewSigner validates the credentials once so a bad configuration fails at startup.
func NewSigner(creds Credentials) (*Signer, error) {
	if creds.ConsumerKey == "" || creds.ConsumerSecret == "" || creds.Token == "" || creds.TokenSecret == "" {
		return nil, fmt.Errorf("%w: consumer key, consumer secret, token and token secret are required", ErrSigning)
	}
	return &Signer{
		creds:  creds,
		now:    time.Now,
		random: rand.Reader,
	}, nil
}

// Header returns the Authorization header value for one request.
func (s *Signer) Header(httpMethod, rawURL string, requestParams map[string]string) (string, error) {
	nonce, err := generateNonce(s.random)
	if err != nil {
		return "", err
	}
	return s.headerWith(httpMethod, rawURL, requestParams, nonce, timestamp(s.now())), nil
}

func (s *Signer) headerWith(httpMethod, rawURL string, requestParams map[string]string, nonce, ts string) string {
	base := signatureBaseString(httpMethod, rawURL, s.oauthParams(nonce, ts), requestParams)
	signature := sign(base, s.creds.ConsumerSecret, s.creds.TokenSecret)

	fields := [][2]string{
		{paramConsumerKey, s.creds.ConsumerKey},
		{paramToken, s.creds.Token},
		{paramSignatureMethod, signatureMethod},
		{paramTimestamp, ts},
		{paramNonce, nonce},
		{paramVersion, version},
		{paramSignature, signature},
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = PercentEncode(f[0]) + `="` + PercentEncode(f[1]) + `"`
	}
	return "OAuth " + strings.Join(parts, ", ")
}

func (s *Signer) oauthParams(nonce, ts string) map[string]string {
	return map[string]string{
		paramConsumerKey:     s.creds.ConsumerKey,
		paramNonce:           nonce,
		paramSignatureMethod: signatureMethod,
		paramTimestamp:       ts,
		paramToken:           s.creds.Token,
		paramVersion:         version,
	}
}

// signatureBaseString merges the parameter sets, encodes each key and value,
// sorts by encoded key and joins them as METHOD&url&params.
func signatureBaseString(httpMethod, rawURL string, paramSets ...map[string]string) string {
	encoded := make(map[string]string)
	for _, params := range paramSets {
		for k, v := range params {
			encoded[PercentEncode(k)] = PercentEncode(v)
		}
	}

	keys := make([]string, 0, len(encoded))
	for k := range encoded {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + encoded[k]
	}

	return strings.ToUpper(httpMethod) + "&" + PercentEncode(rawURL) + "&" + PercentEncode(strings.Join(pairs, "&"))
}

func sign(base, consumerSecret, tokenSecret string) string {
	key := PercentEncode(consumerSecret) + "&" + PercentEncode(tokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// PercentEncode encodes s per RFC 3986 section 2.1: only A-Za-z0-9-._~ pass through.
func PercentEncode(s string) string {
	return normalizeEncoding(url.QueryEscape(s))
}

// normalizeEncoding rewrites form encoding into RFC 3986 encoding:
// "+" becomes "%20", "*" becomes "%2A" and "%7E" is decoded back to "~".
func normalizeEncoding(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteString("%20")
		case c == '*':
			b.WriteString("%2A")
		case c == '%' && i+2 < len(s) && s[i+1] == '7' && (s[i+2] == 'E' || s[i+2] == 'e'):
			b.WriteByte('~')
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func generateNonce(random io.Reader) (string, error) {
	max := big.NewInt(int64(len(nonceAlphabet)))
	buf := make([]byte, nonceLength)
	for i := range buf {
		n, err := rand.Int(random, max)
		if err != nil {
			return "", fmt.Errorf("%w: generate nonce: %v", ErrSigning, err)
		}
		buf[i] = nonceAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// timestamp is the Unix time in seconds, rounded to the nearest second.
func timestamp(now time.Time) string {
	return strconv.FormatInt(int64(math.Round(float64(now.UnixMilli())/1000.0)), 10)
}
