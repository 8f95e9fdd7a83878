package cli

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

	"pigbank/internal/auth"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Signup(ctx context.Context, email, password string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/signup", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out)
	return out, err
}

func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/auth/logout", accessToken, nil, nil)
}

func (c *Client) DeleteAccount(ctx context.Context, accessToken string) error {
	return c.jsonRequest(ctx, http.MethodDelete, "/v1/account", accessToken, nil, nil)
}

func (c *Client) Ledger(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/ledger", accessToken, nil, &out)
	return out, err
}

func (c *Client) Dues(ctx context.Context, accessToken string, day int) (map[string]any, error) {
	path := "/v1/dues"
	if day > 0 {
		path = fmt.Sprintf("/v1/dues?day=%d", day)
	}
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, path, accessToken, nil, &out)
	return out, err
}

func (c *Client) AdvanceDay(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/day/advance", accessToken, map[string]any{}, &out)
	return out, err
}

func (c *Client) Pay(ctx context.Context, accessToken, label, loanID, method, accountKey string, amountCents int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/payments", accessToken, map[string]any{
		"label":       label,
		"amountCents": amountCents,
		"loanId":      loanID,
		"method":      method,
		"accountKey":  accountKey,
	}, &out)
	return out, err
}

func (c *Client) ApplyForLoan(ctx context.Context, accessToken string, principalCents int64, termMonths int) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/loans", accessToken, map[string]any{
		"principalCents": principalCents,
		"termMonths":     termMonths,
	}, &out)
	return out, err
}

func (c *Client) RecomputeScore(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/credit/score", accessToken, map[string]any{}, &out)
	return out, err
}

func (c *Client) ApplyForCard(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/credit/cards", accessToken, map[string]any{}, &out)
	return out, err
}

func (c *Client) SelectJob(ctx context.Context, accessToken, job string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/jobs/select", accessToken, map[string]any{
		"job": job,
	}, &out)
	return out, err
}

func (c *Client) BuyItem(ctx context.Context, accessToken, item string, quantity int) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/shop/buy", accessToken, map[string]any{
		"item":     item,
		"quantity": quantity,
	}, &out)
	return out, err
}

func (c *Client) Timers(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/timers", accessToken, nil, &out)
	return out, err
}

func (c *Client) TimerAction(ctx context.Context, accessToken, category, action string) (map[string]any, error) {
	var out map[string]any
	path := "/v1/timers/" + url.PathEscape(category) + "/" + url.PathEscape(action)
	err := c.jsonRequest(ctx, http.MethodPost, path, accessToken, map[string]any{}, &out)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
