package api

import (
	"context"
	"net/http"
)

type credentials struct {
	Email    string `json:"email"`
	Pubkey   string `json:"pubkey"`
	Password string `json:"password"`
}

func (c *Client) tokenCall(ctx context.Context, path string, in any) (string, error) {
	var out tokenResponse
	if err := c.do(ctx, http.MethodPost, path, nil, in, &out, false); err != nil {
		return "", err
	}
	return out.Token, nil
}

// SendCode asks the server to email a sign-up code.
func (c *Client) SendCode(ctx context.Context, email string) error {
	in := struct {
		Email string `json:"email"`
	}{email}
	return c.do(ctx, http.MethodPost, "/auth/send-code", nil, in, nil, false)
}

func (c *Client) SignUp(ctx context.Context, email, code, pubkey, password string) (string, error) {
	in := struct {
		Email    string `json:"email"`
		Code     string `json:"code"`
		Pubkey   string `json:"pubkey"`
		Password string `json:"password"`
	}{email, code, pubkey, password}
	return c.tokenCall(ctx, "/auth/sign-up", in)
}

func (c *Client) Login(ctx context.Context, email, pubkey, password string) (string, error) {
	return c.tokenCall(ctx, "/auth/login", credentials{email, pubkey, password})
}

// RequestVerification returns a PendingDevice token for WaitVerification.
func (c *Client) RequestVerification(ctx context.Context, email, pubkey, password string) (string, error) {
	return c.tokenCall(ctx, "/auth/request-verification", credentials{email, pubkey, password})
}

// Devices lists the account's other devices.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var out []Device
	if err := c.do(ctx, http.MethodGet, "/devices", nil, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// AddDevice admits the pending device with pubkey into the account.
func (c *Client) AddDevice(ctx context.Context, pubkey string) (*Device, error) {
	in := struct {
		Pubkey string `json:"pubkey"`
	}{pubkey}
	var out Device
	if err := c.do(ctx, http.MethodPost, "/devices", nil, in, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteDevice removes this device from its account.
func (c *Client) DeleteDevice(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/devices", nil, nil, nil, true)
}
