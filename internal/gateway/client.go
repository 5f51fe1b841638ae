package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrUnavailable is returned when the gateway cannot be reached or answers
// with a non-success status before any reply data arrives.
var ErrUnavailable = errors.New("gateway unavailable")

// Client talks to the OpenAI-compatible completions gateway.
type Client struct {
	api            *openai.Client
	httpClient     *http.Client
	baseURL        string
	token          string
	model          string
	requestTimeout time.Duration
	idleTimeout    time.Duration
	logger         *zap.Logger
}

type Options struct {
	URL            string
	Token          string
	Model          string
	RequestTimeout time.Duration
	// StreamIdleTimeout aborts a stream when no chunk arrives for this long.
	StreamIdleTimeout time.Duration
}

func NewClient(opts Options, logger *zap.Logger) *Client {
	cfg := openai.DefaultConfig(opts.Token)
	cfg.BaseURL = strings.TrimSuffix(opts.URL, "/") + "/v1"

	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 120 * time.Second
	}
	if opts.StreamIdleTimeout <= 0 {
		opts.StreamIdleTimeout = 60 * time.Second
	}

	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		baseURL: strings.TrimSuffix(opts.URL, "/"),
		token:   opts.Token,
		model:   opts.Model,
		// Streaming requests have no overall deadline; idleTimeout bounds
		// the gap between chunks instead.
		httpClient:     &http.Client{},
		requestTimeout: opts.RequestTimeout,
		idleTimeout:    opts.StreamIdleTimeout,
		logger:         logger,
	}
}

// Complete sends a non-streaming chat completion and returns the reply
// text, empty when the gateway answered without content.
func (c *Client) Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream sends a streaming chat completion and invokes onDelta for every
// incremental text fragment. It returns the accumulated reply once the
// upstream emits its done sentinel or closes the connection. Malformed
// frames are logged and skipped, never fatal.
func (c *Client) Stream(ctx context.Context, messages []openai.ChatCompletionMessage, onDelta func(string)) (string, error) {
	body, err := json.Marshal(openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return "", fmt.Errorf("error encoding request: %v", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	// Cancel the request when the upstream goes quiet for too long.
	idle := time.AfterFunc(c.idleTimeout, cancel)
	defer idle.Stop()

	var full strings.Builder
	decoder := &LineDecoder{}
	chunk := make([]byte, 4096)

	start := time.Now()
	var firstDelta time.Duration
	frames := 0

	finish := func() string {
		c.logger.Debug("Stream finished",
			zap.Duration("first_delta", firstDelta),
			zap.Int("frames", frames),
			zap.Int("chars", full.Len()),
			zap.Duration("total", time.Since(start)))
		return full.String()
	}

	handleLine := func(line string) (done bool) {
		payload, ok := DataPayload(line)
		if !ok {
			return false
		}
		if payload == DoneSentinel {
			return true
		}
		delta, err := ParseDelta(payload)
		if err != nil {
			c.logger.Warn("Skipping malformed stream frame",
				zap.Error(err),
				zap.String("payload", payload))
			return false
		}
		if delta != "" {
			if frames == 0 {
				firstDelta = time.Since(start)
			}
			frames++
			full.WriteString(delta)
			if onDelta != nil {
				onDelta(delta)
			}
		}
		return false
	}

	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			idle.Reset(c.idleTimeout)
			for _, line := range decoder.Feed(chunk[:n]) {
				if handleLine(line) {
					return finish(), nil
				}
			}
		}
		if readErr != nil {
			// Upstream closed without the done sentinel; flush the buffered
			// partial line, then whatever text accumulated counts as the
			// reply.
			handleLine(decoder.Rest())
			return finish(), nil
		}
	}
}

// Ping checks gateway reachability with a one-token request. An auth
// rejection still means the gateway is up.
func (c *Client) Ping(ctx context.Context) (time.Duration, bool) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	body, _ := json.Marshal(openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
		MaxTokens: 1,
	})

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return time.Since(start), false
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return time.Since(start), false
	}
	defer resp.Body.Close()

	ok := resp.StatusCode < 300 || resp.StatusCode == http.StatusUnauthorized
	return time.Since(start), ok
}
