package provider

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"

	"ohsync/internal/errs"
	"ohsync/internal/ports"
)

// credentialsFromToken converts an oauth2 token into the vault payload.
// Providers drop the refresh token on refresh responses, so the previous
// one is carried forward when the new token omits it.
func credentialsFromToken(token *oauth2.Token, previous ports.Credentials) ports.Credentials {
	creds := ports.Credentials{
		AccessToken:      token.AccessToken,
		RefreshToken:     token.RefreshToken,
		TokenType:        token.TokenType,
		Scope:            previous.Scope,
		ProviderMetadata: previous.ProviderMetadata,
	}
	if creds.RefreshToken == "" {
		creds.RefreshToken = previous.RefreshToken
	}
	if !token.Expiry.IsZero() {
		creds.ExpiresAt = token.Expiry.UTC().Format(time.RFC3339)
	}
	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		creds.Scope = scope
	}
	return creds
}

func tokenFromCredentials(creds ports.Credentials) *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    creds.TokenType,
	}
	if creds.ExpiresAt != "" {
		if expiry, err := time.Parse(time.RFC3339, creds.ExpiresAt); err == nil {
			token.Expiry = expiry
		}
	}
	return token
}

func exchangeCode(ctx context.Context, conf *oauth2.Config, code string) (ports.Credentials, error) {
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return ports.Credentials{}, errs.Wrap(err, "exchange authorization code")
	}
	if token.AccessToken == "" {
		return ports.Credentials{}, errors.New("token response has no access token")
	}
	return credentialsFromToken(token, ports.Credentials{}), nil
}

func refreshToken(ctx context.Context, conf *oauth2.Config, creds ports.Credentials) (ports.Credentials, error) {
	if creds.RefreshToken == "" {
		return ports.Credentials{}, errors.New("no refresh token")
	}

	// Force a refresh grant by presenting an expired access token.
	stale := &oauth2.Token{
		RefreshToken: creds.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}
	token, err := conf.TokenSource(ctx, stale).Token()
	if err != nil {
		return ports.Credentials{}, errs.Wrap(err, "refresh access token")
	}
	return credentialsFromToken(token, creds), nil
}
