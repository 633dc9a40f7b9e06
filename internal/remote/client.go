package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a thin HTTP client for the hosted service's REST surface.
// Every request carries the project's public API key; requests made on
// behalf of a user also carry the user's access token as a Bearer token.
// Nothing is retried.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the project at baseURL
// (e.g. https://abc.supabase.co) using the public anon key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// request describes one call. token may be empty, in which case the API
// key doubles as the bearer token.
type request struct {
	method string
	path   string
	query  url.Values
	token  string
	prefer string
	body   interface{}
}

// do builds the request, applies auth headers and JSON (de)serialization.
// result may be nil when the body is not needed.
func (c *Client) do(ctx context.Context, r request, result interface{}) error {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var bodyReader io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	token := r.token
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.prefer != "" {
		req.Header.Set("Prefer", r.prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", r.method, r.path, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("reading response body: %w", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseError(resp.StatusCode, respBody)
		apiErr.Method = r.method
		apiErr.Path = r.path
		if resp.StatusCode == http.StatusUnauthorized {
			return &AuthError{Message: apiErr.Message, Err: apiErr}
		}
		return apiErr
	}

	// No content to parse (e.g. 204).
	if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response from %s %s: %w", r.method, r.path, err)
	}

	return nil
}

// errorBody covers both the auth API's and the table API's error shapes.
type errorBody struct {
	// auth API
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	ErrorCode        string `json:"error_code"`

	// table API
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`

	// A string on the table API, the HTTP status number on the auth API.
	Code json.RawMessage `json:"code"`
}

// parseError extracts the most descriptive message the body offers.
func parseError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var eb errorBody
	if json.Unmarshal(body, &eb) != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	switch {
	case eb.ErrorDescription != "":
		apiErr.Message = eb.ErrorDescription
	case eb.Msg != "":
		apiErr.Message = eb.Msg
	case eb.Message != "":
		apiErr.Message = eb.Message
	case eb.Error != "":
		apiErr.Message = eb.Error
	default:
		apiErr.Message = http.StatusText(status)
	}

	var code string
	if len(eb.Code) > 0 && eb.Code[0] == '"' {
		_ = json.Unmarshal(eb.Code, &code)
	}

	switch {
	case code != "":
		apiErr.Code = code
	case eb.ErrorCode != "":
		apiErr.Code = eb.ErrorCode
	case eb.Error != "" && eb.Error != apiErr.Message:
		apiErr.Code = eb.Error
	}

	return apiErr
}
