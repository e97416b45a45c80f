package client

import (
	"bytes"
	"context"
	"crypto"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"code.superseriousbusiness.org/activity/streams"
	"code.superseriousbusiness.org/activity/streams/vocab"
	"code.superseriousbusiness.org/httpsig"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/fedicache/internal/metrics"
	"github.com/sidereusnuntius/fedicache/internal/remote"
	"golang.org/x/time/rate"
)

const (
	ActivityJSON = "application/activity+json"
	JSON         = "application/json"
	JRD          = "application/jrd+json"
)

const maxBodySize = 16 << 20

var prefs = []httpsig.Algorithm{httpsig.RSA_SHA256}
var getHeaders = []string{httpsig.RequestTarget, "date"}

// StatusError is returned for responses with a status code of 400 or above.
type StatusError struct {
	Code   int
	Status string
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.Status, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == remote.ErrNotFound && (e.Code == http.StatusNotFound || e.Code == http.StatusGone)
}

func (e *StatusError) retriable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

type Options struct {
	UserAgent string
	// Timeout bounds each attempt of a request. Zero means no deadline.
	Timeout time.Duration
	// Retries is the number of times a request is repeated after a transient failure.
	Retries   int
	RetryWait time.Duration
	// RateLimit is the maximum number of requests per second sent to a single host. Zero disables it.
	RateLimit float64
	Burst     int
	// Token is sent as a bearer token to TokenHost only.
	Token     string
	TokenHost string
}

// HttpClient fetches documents from remote servers. When given a key, every request is signed with
// it, which servers running in authorized fetch mode require.
type HttpClient struct {
	client         *http.Client
	opts           Options
	key            crypto.PrivateKey
	pubKeyId       *url.URL
	getSigner      httpsig.Signer
	getSignerMutex sync.Mutex
	limitersMutex  sync.Mutex
	limiters       map[string]*rate.Limiter
}

func New(client *http.Client, key crypto.PrivateKey, keyId *url.URL, opts Options) (*HttpClient, error) {
	c := &HttpClient{
		client:   client,
		opts:     opts,
		key:      key,
		pubKeyId: keyId,
		limiters: make(map[string]*rate.Limiter),
	}
	if c.opts.UserAgent == "" {
		c.opts.UserAgent = "fedicache"
	}
	if c.opts.RetryWait <= 0 {
		c.opts.RetryWait = 500 * time.Millisecond
	}
	if c.opts.Burst <= 0 {
		c.opts.Burst = 1
	}

	if key != nil {
		if keyId == nil {
			return nil, errors.New("signing key given without a key id")
		}
		getSigner, _, err := httpsig.NewSigner(prefs, httpsig.DigestSha256, getHeaders, httpsig.Signature, 3600)
		if err != nil {
			return nil, err
		}
		c.getSigner = getSigner
	}

	return c, nil
}

// Get dereferences iri and parses the response as an ActivityStreams object.
func (c *HttpClient) Get(ctx context.Context, iri *url.URL) (obj vocab.Type, err error) {
	var props map[string]any
	if _, err = c.GetJSON(ctx, iri, ActivityJSON, &props); err != nil {
		return
	}

	obj, err = streams.ToType(ctx, props)
	return
}

// GetJSON dereferences iri and decodes the response body into v. It returns the response headers.
func (c *HttpClient) GetJSON(ctx context.Context, iri *url.URL, accept string, v any) (http.Header, error) {
	res, err := c.Dereference(ctx, iri, accept)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if err = json.NewDecoder(res.Body).Decode(v); err != nil {
		log.Error().Err(err).Str("url", iri.String()).Msg("response body unmarshaling error")
		return nil, fmt.Errorf("decoding %s: %w", iri, err)
	}
	return res.Header, nil
}

// Dereference performs a GET request, retrying transient failures. The body of the returned response
// is already read into memory.
func (c *HttpClient) Dereference(ctx context.Context, iri *url.URL, accept string) (*http.Response, error) {
	limiter := c.limiter(iri.Host)

	var res *http.Response
	op := func() error {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		r, err := c.do(ctx, iri, accept)
		if err != nil {
			if ctx.Err() == nil && retriable(err) {
				log.Debug().Err(err).Str("url", iri.String()).Msg("retrying request")
				return err
			}
			return backoff.Permanent(err)
		}
		res = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.RetryWait
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(c.opts.Retries, 0))), ctx))
	return res, err
}

func (c *HttpClient) do(ctx context.Context, iri *url.URL, accept string) (*http.Response, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iri.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if c.opts.Token != "" && iri.Host == c.opts.TokenHost {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	if err = c.sign(req); err != nil {
		log.Error().Err(err).Msg("error while signing request")
		return nil, err
	}

	obs := metrics.StartRemoteRequest(iri.Host)
	res, err := c.client.Do(req)
	if err != nil {
		obs.Finish(metrics.Failed)
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		obs.Finish(metrics.Failed)
		return nil, err
	}

	if res.StatusCode >= http.StatusBadRequest {
		obs.Finish(metrics.Failed)
		log.Debug().Str("status", res.Status).Str("url", iri.String()).Bytes("response", body).Msg("fetch error")
		return nil, &StatusError{Code: res.StatusCode, Status: res.Status, Body: body}
	}

	obs.Finish(metrics.Ok)
	res.Body = io.NopCloser(bytes.NewReader(body))
	return res, nil
}

func (c *HttpClient) sign(req *http.Request) error {
	if c.getSigner == nil {
		return nil
	}

	c.getSignerMutex.Lock()
	defer c.getSignerMutex.Unlock()
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	return c.getSigner.SignRequest(c.key, c.pubKeyId.String(), req, nil)
}

func (c *HttpClient) limiter(host string) *rate.Limiter {
	if c.opts.RateLimit <= 0 {
		return nil
	}

	c.limitersMutex.Lock()
	defer c.limitersMutex.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.opts.RateLimit), c.opts.Burst)
		c.limiters[host] = l
	}
	return l
}

func retriable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.retriable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
