package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/metrics"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/jitter"
	"github.com/DRSN-tech/recommender/pkg/logger"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	breakerName     = "gemini"
	maxRetryDelay   = 5 * time.Second
	maxErrorBodyLen = 512
)

// GeminiClient вызывает generateContent REST API с ограничением частоты,
// повторами с джиттером и circuit breaker.
type GeminiClient struct {
	httpClient *http.Client
	cfg        *cfg.ExplainCfg
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[string]
	logger     logger.Logger
}

func NewGeminiClient(c *cfg.ExplainCfg, logger logger.Logger) *GeminiClient {
	metrics.SetLLMBreakerState(0)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     c.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(max(c.BreakerFails, 1))
		},
		// Ошибки запроса на стороне клиента не говорят о недоступности сервиса
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("circuit breaker %s: %s -> %s", name, from, to)
			metrics.SetLLMBreakerState(stateToFloat(to))
		},
	})

	limit := rate.Limit(c.RatePerSecond)
	if c.RatePerSecond <= 0 {
		limit = rate.Inf
	}

	return &GeminiClient{
		httpClient: &http.Client{Timeout: c.Timeout},
		cfg:        c,
		limiter:    rate.NewLimiter(limit, max(c.Burst, 1)),
		cb:         cb,
		logger:     logger,
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// statusError — неуспешный HTTP-ответ API.
type statusError struct {
	code int
	body string
}

func (s *statusError) Error() string {
	return fmt.Sprintf("gemini responded %d: %s", s.code, s.body)
}

// Generate возвращает текст ответа модели на prompt.
// Ошибки классифицируются как e.ErrCollaboratorTimeout или e.ErrCollaboratorError.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	const op = "GeminiClient.Generate"

	var lastErr error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			sleepTime := jitter.ExponentialBackoff(g.cfg.RetryBaseDelay, maxRetryDelay, attempt-1, jitter.DefaultJitter)
			g.logger.Warnf("gemini call failed, retrying in %v (attempt %d): %v", sleepTime, attempt, lastErr)

			select {
			case <-time.After(sleepTime):
			case <-ctx.Done():
				return "", e.Wrap(op, classify(ctx.Err()))
			}
		}

		if err := g.limiter.Wait(ctx); err != nil {
			return "", e.Wrap(op, classify(err))
		}

		text, err := g.cb.Execute(func() (string, error) {
			return g.call(ctx, prompt)
		})
		if err == nil {
			metrics.RecordLLMRequest("success")
			return text, nil
		}

		lastErr = err
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordLLMRequest("rejected")
			break
		}

		metrics.RecordLLMRequest("failure")
		if !isRetryable(err) || ctx.Err() != nil {
			break
		}
	}

	return "", e.Wrap(op, classify(lastErr))
}

func (g *GeminiClient) call(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{Temperature: g.cfg.Temperature},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(g.cfg.BaseURL, "/"), g.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return "", &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}

	if len(out.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}

	return sb.String(), nil
}

func isClientError(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 400 && se.code < 500 && se.code != http.StatusTooManyRequests
	}
	return false
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", e.ErrCollaboratorTimeout, err)
	}
	return fmt.Errorf("%w: %w", e.ErrCollaboratorError, err)
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
