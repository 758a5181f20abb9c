package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// ResilientClient wraps an HTTP client with circuit breaker and retry
// logic for the LLM API, which is the flakiest dependency we talk to.
type ResilientClient struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	config  ResilientClientConfig
}

type ResilientClientConfig struct {
	EnableCircuitBreaker bool
	MaxFailures          uint32
	CircuitTimeout       time.Duration

	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultResilientClientConfig reads overrides from the environment.
func DefaultResilientClientConfig() ResilientClientConfig {
	return ResilientClientConfig{
		EnableCircuitBreaker: getEnvBool("AI_CIRCUIT_BREAKER_ENABLED", true),
		MaxFailures:          uint32(getEnvInt("AI_CIRCUIT_BREAKER_MAX_FAILURES", 5)),
		CircuitTimeout:       time.Duration(getEnvInt("AI_CIRCUIT_BREAKER_TIMEOUT_SECONDS", 30)) * time.Second,
		MaxRetries:           getEnvInt("AI_RETRY_MAX_ATTEMPTS", 3),
		InitialInterval:      time.Duration(getEnvInt("AI_RETRY_INITIAL_INTERVAL_MS", 500)) * time.Millisecond,
		MaxInterval:          time.Duration(getEnvInt("AI_RETRY_MAX_INTERVAL_MS", 5000)) * time.Millisecond,
	}
}

func NewResilientClient(timeout time.Duration, config ResilientClientConfig) *ResilientClient {
	client := &http.Client{
		Timeout: timeout,
	}

	var breaker *gobreaker.CircuitBreaker
	if config.EnableCircuitBreaker {
		settings := gobreaker.Settings{
			Name:        "llm-api",
			MaxRequests: 1,
			Interval:    0,
			Timeout:     config.CircuitTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= config.MaxFailures
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				fmt.Printf("⚡ Circuit breaker '%s' changed from %s to %s\n", name, from, to)
				if to == gobreaker.StateOpen {
					RecordError("circuit_open")
				}
			},
		}
		breaker = gobreaker.NewCircuitBreaker(settings)
	}

	return &ResilientClient{
		client:  client,
		breaker: breaker,
		config:  config,
	}
}

// Do executes an HTTP request through the circuit breaker with retries.
func (c *ResilientClient) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.doWithRetry(req)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doWithRetry(req)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			RecordError("circuit_open")
			return nil, fmt.Errorf("circuit breaker is open: %w", err)
		}
		return nil, err
	}

	return result.(*http.Response), nil
}

func (c *ResilientClient) doWithRetry(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var lastErr error

	if c.config.MaxRetries == 0 {
		resp, err := c.client.Do(req)
		if err != nil {
			RecordError("connection")
			return nil, err
		}
		if resp.StatusCode >= 400 {
			c.recordErrorFromResponse(resp)
			resp.Body.Close()
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		}
		return resp, nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.config.InitialInterval
	expBackoff.MaxInterval = c.config.MaxInterval
	expBackoff.Multiplier = 2.0
	expBackoff.MaxElapsedTime = 0

	retryBackoff := backoff.WithMaxRetries(expBackoff, uint64(c.config.MaxRetries))
	retryBackoff = backoff.WithContext(retryBackoff, req.Context())

	operation := func() error {
		// The request body is consumed per attempt; buffer it for replay.
		var bodyBytes []byte
		if req.Body != nil {
			var err error
			bodyBytes, err = io.ReadAll(req.Body)
			if err != nil {
				return backoff.Permanent(fmt.Errorf("failed to read request body: %w", err))
			}
			req.Body.Close()
		}
		if len(bodyBytes) > 0 {
			req.Body = io.NopCloser(strings.NewReader(string(bodyBytes)))
		}

		var err error
		resp, err = c.client.Do(req)
		if err != nil {
			lastErr = err
			RecordError("connection")
			if c.shouldRetry(err, nil) {
				return err
			}
			return backoff.Permanent(err)
		}

		if c.shouldRetry(nil, resp) {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
			c.recordErrorFromResponse(resp)
			resp.Body.Close()
			return lastErr
		}

		if resp.StatusCode >= 400 {
			c.recordErrorFromResponse(resp)
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
			return backoff.Permanent(lastErr)
		}

		return nil
	}

	if err := backoff.Retry(operation, retryBackoff); err != nil {
		return nil, fmt.Errorf("request failed after retries: %w", lastErr)
	}

	return resp, nil
}

func (c *ResilientClient) shouldRetry(err error, resp *http.Response) bool {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		if strings.Contains(err.Error(), "connection refused") ||
			strings.Contains(err.Error(), "connection reset") ||
			strings.Contains(err.Error(), "EOF") {
			return true
		}
		return false
	}

	if resp != nil {
		switch resp.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
			http.StatusBadGateway,
			http.StatusInternalServerError:
			return true
		}
	}

	return false
}

func (c *ResilientClient) recordErrorFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		RecordError("auth")
	case http.StatusTooManyRequests:
		RecordError("rate_limit")
	case http.StatusRequestTimeout:
		RecordError("timeout")
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		RecordError("server_error")
	default:
		RecordError("http_error")
	}
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
