package auth

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/five82/reeltrack/internal/api"
	"github.com/five82/reeltrack/internal/credentials"
)

const (
	pathDeviceCode  = "/oauth/device/code"
	pathDeviceToken = "/oauth/device/token"
	pathToken       = "/oauth/token"
	pathRevoke      = "/oauth/revoke"

	redirectURIOOB = "urn:ietf:wg:oauth:2.0:oob"
)

type deviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	CreatedAt    int64  `json:"created_at"`
}

// token converts the response, computing the absolute expiry. created_at is
// preferred over now when the server sends it.
func (t tokenResponse) token(now time.Time) credentials.Token {
	tok := credentials.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
	}
	if t.ExpiresIn > 0 {
		issued := now
		if t.CreatedAt > 0 {
			issued = time.Unix(t.CreatedAt, 0)
		}
		tok.ExpiresAt = issued.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return tok
}

func decodeDeviceCode(payload json.RawMessage) (DeviceCode, error) {
	var resp deviceCodeResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return DeviceCode{}, api.NewError(api.KindProtocol, "decode device code", err)
	}
	if strings.TrimSpace(resp.DeviceCode) == "" || strings.TrimSpace(resp.UserCode) == "" {
		return DeviceCode{}, api.NewError(api.KindProtocol, "device code response missing codes", nil)
	}
	if resp.ExpiresIn <= 0 {
		return DeviceCode{}, api.NewError(api.KindProtocol, "device code response missing expiry", nil)
	}
	interval := resp.Interval
	if interval <= 0 {
		interval = 5
	}
	return DeviceCode{
		UserCode:        resp.UserCode,
		VerificationURL: resp.VerificationURL,
		ExpiresIn:       time.Duration(resp.ExpiresIn) * time.Second,
		Interval:        time.Duration(interval) * time.Second,
		deviceCode:      resp.DeviceCode,
	}, nil
}

// decodeToken reports ok=false for a well-formed body without a token.
func decodeToken(payload json.RawMessage) (tokenResponse, bool, error) {
	var resp tokenResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return tokenResponse{}, false, api.NewError(api.KindProtocol, "decode token", err)
	}
	if strings.TrimSpace(resp.AccessToken) == "" {
		return resp, false, nil
	}
	return resp, true, nil
}
