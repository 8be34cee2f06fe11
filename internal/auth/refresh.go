package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/five82/reeltrack/internal/api"
	"github.com/five82/reeltrack/internal/credentials"
	"github.com/five82/reeltrack/internal/retry"
)

// Refresh exchanges the stored refresh token for a new access token and
// writes it through opts.Tokens. Only Sender, Tokens, ClientSecret, Cache,
// Executor, Policy, Logger and Now are used.
func Refresh(ctx context.Context, opts Options) (credentials.Token, error) {
	if opts.Sender == nil || opts.Tokens == nil {
		return credentials.Token{}, fmt.Errorf("refresh token: sender and token store are required")
	}
	creds := opts.Tokens.Credentials()
	if strings.TrimSpace(creds.ClientID) == "" {
		return credentials.Token{}, api.ErrMissingClientID
	}
	if strings.TrimSpace(creds.RefreshToken) == "" {
		return credentials.Token{}, api.NewError(api.KindConfig, "no refresh token stored", nil)
	}

	exec, policy, logger := tokenCallDefaults(opts)
	desc := api.Descriptor{
		Op:     "refresh_token",
		Method: http.MethodPost,
		Path:   pathToken,
		Body: map[string]string{
			"refresh_token": creds.RefreshToken,
			"client_id":     creds.ClientID,
			"client_secret": opts.ClientSecret,
			"redirect_uri":  redirectURIOOB,
			"grant_type":    "refresh_token",
		},
	}
	payload, err := exec.Execute(ctx, pathToken, func(ctx context.Context) (*api.Response, error) {
		return opts.Sender.Send(ctx, desc, api.Auth{ClientID: creds.ClientID})
	}, policy)
	if err != nil {
		return credentials.Token{}, fmt.Errorf("refresh token: %w", err)
	}
	resp, ok, err := decodeToken(payload)
	if err != nil {
		return credentials.Token{}, fmt.Errorf("refresh token: %w", err)
	}
	if !ok {
		return credentials.Token{}, api.NewError(api.KindProtocol, "refresh response missing access token", nil)
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	tok := resp.token(now())
	if tok.RefreshToken == "" {
		tok.RefreshToken = creds.RefreshToken
	}
	if err := opts.Tokens.SetToken(tok); err != nil {
		return credentials.Token{}, fmt.Errorf("store token: %w", err)
	}
	if opts.Cache != nil {
		opts.Cache.Invalidate()
	}
	logger.Info("access token refreshed", "expires", tok.ExpiresAt)
	return tok, nil
}

// Revoke asks the server to invalidate the current access token. Callers
// sign out locally regardless of the outcome.
func Revoke(ctx context.Context, opts Options) error {
	if opts.Sender == nil || opts.Tokens == nil {
		return fmt.Errorf("revoke token: sender and token store are required")
	}
	creds := opts.Tokens.Credentials()
	if creds.AccessToken == "" {
		return nil
	}
	exec, policy, logger := tokenCallDefaults(opts)
	desc := api.Descriptor{
		Op:     "revoke_token",
		Method: http.MethodPost,
		Path:   pathRevoke,
		Body: map[string]string{
			"token":         creds.AccessToken,
			"client_id":     creds.ClientID,
			"client_secret": opts.ClientSecret,
		},
	}
	_, err := exec.Execute(ctx, pathRevoke, func(ctx context.Context) (*api.Response, error) {
		return opts.Sender.Send(ctx, desc, api.Auth{ClientID: creds.ClientID})
	}, policy)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	logger.Info("access token revoked")
	return nil
}

func tokenCallDefaults(opts Options) (*retry.Executor, retry.Policy, hclog.Logger) {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	exec := opts.Executor
	if exec == nil {
		exec = retry.NewExecutor(logger)
	}
	policy := opts.Policy
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}
	return exec, policy, logger
}
