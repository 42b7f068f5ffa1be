package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RxNavConfig configures the remote spelling-suggestion client
type RxNavConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
	// consecutive failures before the breaker opens
	MaxFailures uint32
	// how long the breaker stays open before probing again
	CoolDown time.Duration
}

// RxNav queries the NLM RxNav spelling-suggestion endpoint
type RxNav struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]string]
	logger  *zap.Logger
}

type suggestionResponse struct {
	SuggestionGroup struct {
		Name           string `json:"name"`
		SuggestionList struct {
			Suggestion []string `json:"suggestion"`
		} `json:"suggestionList"`
	} `json:"suggestionGroup"`
}

// NewRxNav creates a client guarded by a rate limiter and a circuit breaker
func NewRxNav(cfg RxNavConfig, logger *zap.Logger) *RxNav {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 2
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &RxNav{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		logger:  logger,
	}
	r.breaker = gobreaker.NewCircuitBreaker[[]string](gobreaker.Settings{
		Name:    "rxnav",
		Timeout: cfg.CoolDown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return r
}

// Suggest returns spelling suggestions for query
func (r *RxNav) Suggest(ctx context.Context, query string) ([]string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limited: %w", err)
	}
	return r.breaker.Execute(func() ([]string, error) {
		return r.fetch(ctx, query)
	})
}

func (r *RxNav) fetch(ctx context.Context, query string) ([]string, error) {
	endpoint := r.baseURL + "/spellingsuggestions.json?name=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rxnav error (status %d): %s", resp.StatusCode, string(body))
	}

	var result suggestionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return result.SuggestionGroup.SuggestionList.Suggestion, nil
}
