package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"checkmate/internal/config"
	"checkmate/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

var (
	ErrFXNotConfigured = errors.New("FX_API_URL environment variable is not set")
	ErrFXCircuitOpen   = errors.New("FX provider temporarily disabled after repeated failures")
)

// consecutive failed lookups before the breaker opens
const fxBreakerTrips = 5

// FXClient queries the external exchange-rate provider. Overload and
// transient failures are retried with exponential backoff and full jitter;
// a rate is never guessed. Lookups that exhaust their retries count
// against a circuit breaker so a dead provider is not hammered.
type FXClient struct {
	APIKey     string
	BaseURL    string
	Client     *http.Client
	MaxRetries int
	RetryBase  time.Duration

	breaker *gobreaker.CircuitBreaker
}

func NewFXClient(cfg config.FXConfig) (*FXClient, error) {
	if cfg.BaseURL == "" {
		return nil, ErrFXNotConfigured
	}
	return &FXClient{
		APIKey:     cfg.APIKey,
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		Client:     &http.Client{Timeout: cfg.Timeout},
		MaxRetries: cfg.MaxRetries,
		RetryBase:  200 * time.Millisecond,
		breaker:    newFXBreaker(cfg.BreakerCooldown),
	}, nil
}

func newFXBreaker(cooldown time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "fx-provider",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= fxBreakerTrips
		},
		// only outages trip the breaker, not bad requests
		IsSuccessful: func(err error) bool {
			var retryable *retryableError
			return err == nil || !errors.As(err, &retryable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			utils.Logger.Warnf("circuit breaker [%s] changed from %s to %s", name, from, to)
		},
	})
}

type FXResponse struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// RateToBase returns how many units of base one unit of currency buys on day.
func (c *FXClient) RateToBase(ctx context.Context, currency, base string, day time.Time) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("base", currency)
	query.Set("symbols", base)
	query.Set("date", day.Format("2006-01-02"))

	var res FXResponse
	if err := c.guarded(ctx, "/rates?"+query.Encode(), &res); err != nil {
		return decimal.Zero, err
	}

	rate, ok := res.Rates[base]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("provider returned no %s rate for %s", base, currency)
	}
	return rate, nil
}

func (c *FXClient) guarded(ctx context.Context, endpoint string, out any) error {
	if c.breaker == nil {
		return c.doRequest(ctx, endpoint, out)
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.doRequest(ctx, endpoint, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrFXCircuitOpen, err)
	}
	return err
}

func (c *FXClient) doRequest(ctx context.Context, endpoint string, out any) error {
	var err error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := fullJitter(exponential(c.RetryBase, attempt-1))
			utils.Logger.Warnf("retrying FX request %s in %s (attempt %d): %v", endpoint, delay, attempt, err)
			if sleepErr := sleepWithContext(ctx, delay); sleepErr != nil {
				return sleepErr
			}
		}

		err = c.once(ctx, endpoint, out)
		var retryable *retryableError
		if err == nil || !errors.As(err, &retryable) {
			return err
		}
	}
	return fmt.Errorf("FX provider unavailable after %d attempts: %w", c.MaxRetries+1, err)
}

func (c *FXClient) once(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.APIKey != "" {
		req.Header.Add("Authorization", "Bearer "+c.APIKey)
	}
	req.Header.Add("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &retryableError{fmt.Errorf("failed to make request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		io.Copy(io.Discard, resp.Body)
		return &retryableError{fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func exponential(base time.Duration, attempt int) time.Duration {
	if attempt > 20 {
		attempt = 20
	}
	return base << attempt
}

func fullJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(d)))
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context done: %w", ctx.Err())
	}
}
