package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flip-racer/flipsim/internal/sim"
)

// HTTPClient makes REST calls to the flipsim server.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:5000").
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// GetPatterns fetches /api/patterns.
func (c *HTTPClient) GetPatterns() (map[string]string, error) {
	out := map[string]string{}
	if err := c.get("/api/patterns", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetStatistics fetches /api/statistics. It returns nil before the first run.
func (c *HTTPClient) GetStatistics() (*Statistics, error) {
	var st Statistics
	if err := c.get("/api/statistics", &st); err != nil {
		return nil, err
	}
	if st.TotalSessions == 0 {
		return nil, nil
	}
	return &st, nil
}

// GetStatus fetches /api/simulation/status.
func (c *HTTPClient) GetStatus() (*StatusResponse, error) {
	var body struct {
		Statistics
		State sim.State `json:"state"`
	}
	if err := c.get("/api/simulation/status", &body); err != nil {
		return nil, err
	}
	resp := &StatusResponse{State: body.State}
	if body.TotalSessions > 0 {
		st := body.Statistics
		resp.Statistics = &st
	}
	return resp, nil
}

// GetSessions fetches /api/sessions.
func (c *HTTPClient) GetSessions() ([]Snapshot, error) {
	var out []Snapshot
	if err := c.get("/api/sessions", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Configure sends POST /api/simulation/configure.
func (c *HTTPClient) Configure(req ConfigureRequest) error {
	return c.post("/api/simulation/configure", req, nil)
}

// Start sends POST /api/simulation/start. A nil req starts with the current
// configuration.
func (c *HTTPClient) Start(req *ConfigureRequest) error {
	var body interface{} = struct{}{}
	if req != nil {
		body = req
	}
	return c.post("/api/simulation/start", body, nil)
}

// Stop sends POST /api/simulation/stop.
func (c *HTTPClient) Stop() error {
	return c.post("/api/simulation/stop", struct{}{}, nil)
}

// Reset sends POST /api/simulation/reset.
func (c *HTTPClient) Reset() error {
	return c.post("/api/simulation/reset", struct{}{}, nil)
}

// Step sends POST /api/simulation/step.
func (c *HTTPClient) Step() (*StepResult, error) {
	var out StepResult
	if err := c.post("/api/simulation/step", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) get(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return responseError(http.MethodGet, path, resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) post(path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return responseError(http.MethodPost, path, resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// responseError prefers the server's {"error": ...} message over the raw body.
func responseError(method, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, body.Error)
	}
	return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
