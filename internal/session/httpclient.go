package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/xaenox/command-center/internal/gateway"
	"github.com/xaenox/command-center/internal/models"
)

// HTTPClient implements API and Uploader against the Command Center
// server's HTTP surface.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		// No overall timeout: the same client serves streaming relays.
		client: &http.Client{},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error encoding request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("error building request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("error calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("error decoding response: %v", err)
		}
	}
	return nil
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func apiError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("server error %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server error %d", resp.StatusCode)
}

func (c *HTTPClient) ListThreads(ctx context.Context, agentID string) ([]models.Thread, error) {
	var threads []models.Thread
	err := c.do(ctx, http.MethodGet, "/api/threads?agent="+agentID, nil, &threads)
	return threads, err
}

func (c *HTTPClient) CreateThread(ctx context.Context, agentID, title string) (*models.Thread, error) {
	var thread models.Thread
	err := c.do(ctx, http.MethodPost, "/api/threads",
		map[string]string{"agentId": agentID, "title": title}, &thread)
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

func (c *HTTPClient) RenameThread(ctx context.Context, id, title string) (*models.Thread, error) {
	var thread models.Thread
	err := c.do(ctx, http.MethodPatch, "/api/threads/"+id,
		map[string]string{"title": title}, &thread)
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

func (c *HTTPClient) SetThreadPinned(ctx context.Context, id string, pinned bool) (*models.Thread, error) {
	var thread models.Thread
	err := c.do(ctx, http.MethodPatch, "/api/threads/"+id,
		map[string]bool{"pinned": pinned}, &thread)
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

func (c *HTTPClient) DeleteThread(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/threads/"+id, nil, nil)
}

func (c *HTTPClient) ClearThread(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/threads/"+id+"/messages", nil, nil)
}

func (c *HTTPClient) ListMessages(ctx context.Context, threadID string) ([]models.Message, error) {
	var messages []models.Message
	err := c.do(ctx, http.MethodGet, "/api/threads/"+threadID+"/messages", nil, &messages)
	return messages, err
}

func (c *HTTPClient) SendChat(ctx context.Context, threadID, content, sender string) (*ChatResult, error) {
	var result ChatResult
	err := c.do(ctx, http.MethodPost, "/api/chat", map[string]interface{}{
		"threadId":  threadID,
		"message":   content,
		"agentName": sender,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// relayFrame is one SSE payload emitted by the streaming relay.
type relayFrame struct {
	Content string `json:"content"`
	Error   string `json:"error"`
	Done    bool   `json:"done"`
}

func (c *HTTPClient) StreamChat(ctx context.Context, threadID, content, sender string, onDelta func(string)) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"threadId":  threadID,
		"message":   content,
		"agentName": sender,
		"stream":    true,
	})
	if err != nil {
		return "", fmt.Errorf("error encoding request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error calling relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apiError(resp)
	}

	var full strings.Builder
	decoder := &gateway.LineDecoder{}
	chunk := make([]byte, 4096)

	apply := func(line string) (done bool, err error) {
		payload, ok := gateway.DataPayload(line)
		if !ok {
			return false, nil
		}
		var frame relayFrame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			return false, nil
		}
		if frame.Error != "" {
			return true, fmt.Errorf("relay stream failed: %s", frame.Error)
		}
		if frame.Done {
			return true, nil
		}
		if frame.Content != "" {
			full.WriteString(frame.Content)
			if onDelta != nil {
				onDelta(frame.Content)
			}
		}
		return false, nil
	}

	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			for _, line := range decoder.Feed(chunk[:n]) {
				if done, err := apply(line); done {
					return full.String(), err
				}
			}
		}
		if readErr != nil {
			// Flush the buffered partial line before treating the close as
			// the end of the reply.
			if done, err := apply(decoder.Rest()); done {
				return full.String(), err
			}
			return full.String(), nil
		}
	}
}

func (c *HTTPClient) Upload(ctx context.Context, filename, contentType string, data []byte) (*UploadResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("error building multipart body: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("error writing multipart body: %v", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("error closing multipart body: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/uploads", &buf)
	if err != nil {
		return nil, fmt.Errorf("error building request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error uploading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(resp)
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error decoding response: %v", err)
	}
	return &result, nil
}
