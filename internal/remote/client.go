package remote

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"plannersync/internal/model"
)

const dataPath = "/data"

// Failure taxonomy of the remote aggregate store. Callers branch on these:
// unauthorized invalidates the cached credential, payload-too-large is
// surfaced to the user and never retried, unavailable leaves local state
// authoritative and queued.
var (
	ErrUnauthorized    = errors.New("remote store: credential rejected")
	ErrPayloadTooLarge = errors.New("remote store: payload too large")
	ErrUnavailable     = errors.New("remote store: unavailable")
)

// CredentialSource supplies the bearer credential and can be told to drop a
// cached token after a 401 so the next attempt re-authenticates.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// StaticCredential is a fixed token that never refreshes; Invalidate is a
// no-op. Useful for configuration-supplied tokens and tests.
type StaticCredential string

var _ CredentialSource = StaticCredential("")

func (c StaticCredential) Token(context.Context) (string, error) { return string(c), nil }
func (c StaticCredential) Invalidate()                           {}

// Client talks to the remote aggregate store: GET returns the stored JSON
// document or null, POST persists it whole.
type Client struct {
	rc    *resty.Client
	creds CredentialSource
}

func New(baseURL string, creds CredentialSource) *Client {
	return &Client{
		rc:    resty.New().SetBaseURL(baseURL),
		creds: creds,
	}
}

// Fetch pulls the remote aggregate. A stored null (nothing pushed yet) comes
// back as (nil, nil). Transient transport failures are retried with a short
// exponential backoff; auth and capacity failures are permanent.
func (c *Client) Fetch(ctx context.Context) (*model.Aggregate, error) {
	op := func() (*model.Aggregate, error) {
		token, err := c.creds.Token(ctx)
		if err != nil {
			return nil, backoff.Permanent(errors.Wrap(err, "resolving credential"))
		}

		var agg *model.Aggregate
		resp, err := c.rc.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetHeader("X-Request-Id", uuid.NewString()).
			SetResult(&agg).
			ForceContentType("application/json").
			Get(dataPath)
		if err != nil {
			return nil, errors.Wrap(ErrUnavailable, err.Error())
		}
		if err := c.checkStatus(resp); err != nil {
			if !errors.Is(err, ErrUnavailable) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return agg, nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(200*time.Millisecond),
	), 2), ctx)
	return backoff.RetryWithData(op, bo)
}

// Push persists the whole aggregate. No automatic retry: the coordinator
// keeps the payload queued and decides when to try again.
func (c *Client) Push(ctx context.Context, agg *model.Aggregate) error {
	token, err := c.creds.Token(ctx)
	if err != nil {
		return errors.Wrap(err, "resolving credential")
	}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Request-Id", uuid.NewString()).
		SetBody(agg).
		Post(dataPath)
	if err != nil {
		return errors.Wrap(ErrUnavailable, err.Error())
	}
	return c.checkStatus(resp)
}

func (c *Client) checkStatus(resp *resty.Response) error {
	switch {
	case !resp.IsError():
		return nil
	case resp.StatusCode() == http.StatusUnauthorized:
		log.Warn().Msg("remote store rejected credential, invalidating")
		c.creds.Invalidate()
		return ErrUnauthorized
	case resp.StatusCode() == http.StatusRequestEntityTooLarge:
		return ErrPayloadTooLarge
	default:
		return errors.Wrap(ErrUnavailable, fmt.Sprintf("status %s", resp.Status()))
	}
}
