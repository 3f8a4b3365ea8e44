package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError is a non-200 answer from the rai server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client talks to the rai HTTP API with the global connection flags.
type Client struct {
	baseURL  string
	client   *http.Client
	user     string
	password string
}

func NewClient() *Client {
	return &Client{
		baseURL:  GetServerURL(),
		client:   &http.Client{Timeout: 30 * time.Second},
		user:     user,
		password: password,
	}
}

func (c *Client) request(method, path string, body any) ([]byte, int, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.baseURL+path, r)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" && c.password != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

// Health checks that a server answers on /health.
func (c *Client) Health() error {
	data, status, err := c.request(http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	return decodeResponse(data, status, nil)
}

// GetJSON decodes a 200 response into v. Other statuses yield an *APIError.
func (c *Client) GetJSON(path string, v any) error {
	data, status, err := c.request(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return decodeResponse(data, status, v)
}

// PostJSON sends body as JSON and decodes a 200 response into v.
func (c *Client) PostJSON(path string, body, v any) error {
	if body == nil {
		body = struct{}{}
	}
	data, status, err := c.request(http.MethodPost, path, body)
	if err != nil {
		return err
	}
	return decodeResponse(data, status, v)
}

func decodeResponse(data []byte, status int, v any) error {
	if status != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			msg = body.Error
		}
		return &APIError{Status: status, Message: msg}
	}
	if v == nil {
		return nil
	}
	return json.Unmarshal(data, v)
}
