package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"royale-tracker/internal/config"
	"royale-tracker/internal/constants"
	"royale-tracker/internal/domain"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

// ErrAccessDenied means the API rejected our credential or egress address.
// This is a configuration problem (typically an un-whitelisted IP), not a
// transient failure; retrying does not help.
var ErrAccessDenied = errors.New("api access denied")

// ErrFetchFailed means a request kept failing after bounded retries. The
// affected player is skipped for the cycle and picked up on the next one.
var ErrFetchFailed = errors.New("api fetch failed")

// StatusError is a non-2xx response from the Clash Royale API.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error: status %d", e.Code)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Code == fasthttp.StatusTooManyRequests || e.Code >= 500
}

// Client talks to the Clash Royale API (directly or through the RoyaleAPI
// proxy) with blocking request pacing and bounded retry.
type Client struct {
	baseURL  string
	apiToken string
	client   *fasthttp.Client
	pacer    *pacer
	retries  RetryPolicy
	logger   zerolog.Logger
}

// RetryPolicy bounds the fetcher's backoff schedule.
type RetryPolicy struct {
	MaxRetries  uint64
	BackoffBase time.Duration
	Jitter      time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  constants.FetchMaxRetries,
		BackoffBase: constants.FetchBackoffBase,
		Jitter:      constants.FetchBackoffJitter,
	}
}

func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL(), "/"),
		apiToken: cfg.APIToken,
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		pacer:   newPacer(cfg.RateLimitRPM),
		retries: DefaultRetryPolicy(),
		logger:  logger.With().Str("component", "royale_api").Logger(),
	}
}

// GetBattleLog fetches the recent battle log for a player tag.
func (c *Client) GetBattleLog(ctx context.Context, tag string) ([]domain.RawBattle, error) {
	url := fmt.Sprintf("%s/players/%%23%s/battlelog", c.baseURL, cleanTag(tag))
	battles, err := fetch[[]domain.RawBattle](ctx, c, url)
	if err != nil {
		return nil, err
	}
	return *battles, nil
}

// GetPlayer fetches a player's profile.
func (c *Client) GetPlayer(ctx context.Context, tag string) (*domain.RawPlayer, error) {
	url := fmt.Sprintf("%s/players/%%23%s", c.baseURL, cleanTag(tag))
	return fetch[domain.RawPlayer](ctx, c, url)
}

// cleanTag strips the display # so the tag can be %23-prefixed on the wire.
func cleanTag(tag string) string {
	return strings.TrimPrefix(strings.TrimSpace(tag), "#")
}

// fetch runs a paced GET with exponential backoff. 403 fails immediately
// as ErrAccessDenied; 429/5xx and transport errors retry until the attempt
// budget is spent, then surface as ErrFetchFailed.
func fetch[T any](ctx context.Context, c *Client, url string) (*T, error) {
	backoff := retry.WithJitter(c.retries.Jitter,
		retry.WithMaxRetries(c.retries.MaxRetries,
			retry.NewExponential(c.retries.BackoffBase)))

	var result T
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.pacer.Wait(ctx); err != nil {
			return err
		}

		body, err := c.doRequest(ctx, url)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				if statusErr.Code == fasthttp.StatusForbidden {
					return fmt.Errorf("%w: %v", ErrAccessDenied, err)
				}
				if !statusErr.Retryable() {
					return err
				}
			}
			c.logger.Warn().Err(err).Str("url", url).Msg("request failed, will retry")
			return retry.RetryableError(err)
		}

		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAccessDenied) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	return &result, nil
}

func (c *Client) doRequest(ctx context.Context, url string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Accept", "application/json")

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(constants.ExternalAPITimeout)
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, err
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode()}
	}

	// resp's buffer is pooled; copy before release.
	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}
