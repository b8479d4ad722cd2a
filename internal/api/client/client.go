// Package client is the HTTP client used by the ops CLI to talk to the
// NetAlarm REST API.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/netalarm/internal/models"
	"github.com/spf13/viper"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client from CLI configuration (server URL and the
// token saved by `netalarmctl login`).
func NewClient() (*Client, error) {
	baseURL := viper.GetString("server")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

func (c *Client) doRequest(method, path string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	token := viper.GetString("token")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error: %s", string(respBody))
	}

	return respBody, nil
}

func (c *Client) Login(username, password string) (string, error) {
	body := map[string]string{
		"username": username,
		"password": password,
	}

	resp, err := c.doRequest("POST", "/api/v1/auth/login", body)
	if err != nil {
		return "", err
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", err
	}

	return result.Token, nil
}

func (c *Client) ListAlarms(status, action string) ([]models.Alarm, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if action != "" {
		q.Set("action", action)
	}
	path := "/api/v1/alarms"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}

	var alarms []models.Alarm
	if err := json.Unmarshal(resp, &alarms); err != nil {
		return nil, err
	}
	return alarms, nil
}

func (c *Client) GetAlarm(id uint) (*models.Alarm, error) {
	resp, err := c.doRequest("GET", fmt.Sprintf("/api/v1/alarms/%d", id), nil)
	if err != nil {
		return nil, err
	}

	var a models.Alarm
	if err := json.Unmarshal(resp, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) AcknowledgeAlarm(id uint) error {
	_, err := c.doRequest("PUT", fmt.Sprintf("/api/v1/alarms/%d/acknowledge", id), nil)
	return err
}

func (c *Client) ClearAlarm(id uint) error {
	_, err := c.doRequest("PUT", fmt.Sprintf("/api/v1/alarms/%d/clear", id), nil)
	return err
}

func (c *Client) GetCorrelationGroup(correlationID string) ([]models.Alarm, error) {
	resp, err := c.doRequest("GET", "/api/v1/correlations/"+url.PathEscape(correlationID), nil)
	if err != nil {
		return nil, err
	}

	var group []models.Alarm
	if err := json.Unmarshal(resp, &group); err != nil {
		return nil, err
	}
	return group, nil
}

func (c *Client) Recorrelate(tenantID string) (int, error) {
	path := "/api/v1/alarms/recorrelate"
	if tenantID != "" {
		path += "?tenant_id=" + url.QueryEscape(tenantID)
	}
	resp, err := c.doRequest("POST", path, nil)
	if err != nil {
		return 0, err
	}

	var result struct {
		Processed int `json:"processed"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return 0, err
	}
	return result.Processed, nil
}

func (c *Client) ListRules(enabled *bool) ([]models.AlarmRule, error) {
	path := "/api/v1/rules"
	if enabled != nil {
		path += fmt.Sprintf("?enabled=%t", *enabled)
	}
	resp, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}

	var rules []models.AlarmRule
	if err := json.Unmarshal(resp, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (c *Client) GetRule(id uint) (*models.AlarmRule, error) {
	resp, err := c.doRequest("GET", fmt.Sprintf("/api/v1/rules/%d", id), nil)
	if err != nil {
		return nil, err
	}

	var rule models.AlarmRule
	if err := json.Unmarshal(resp, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (c *Client) CreateRule(rule *models.AlarmRule) error {
	_, err := c.doRequest("POST", "/api/v1/rules", rule)
	return err
}

func (c *Client) ImportRules(rules []models.AlarmRule) error {
	_, err := c.doRequest("POST", "/api/v1/rules/import", rules)
	return err
}

func (c *Client) DeleteRule(id uint) error {
	_, err := c.doRequest("DELETE", fmt.Sprintf("/api/v1/rules/%d", id), nil)
	return err
}
