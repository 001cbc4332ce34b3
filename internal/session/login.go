package session

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"bulkctl/cli/internal/errors"

	"golang.org/x/oauth2"
)

// LoginConfig holds the connected app and user credentials for the OAuth 2.0
// username-password flow.
type LoginConfig struct {
	LoginURL      string // https://login.salesforce.com or https://test.salesforce.com
	ClientID      string
	ClientSecret  string
	Username      string
	Password      string
	SecurityToken string // appended to the password when the org requires it

	// HTTPClient is used for the token request when set.
	HTTPClient *http.Client
}

// TokenURL returns the token endpoint under the login host.
func (c LoginConfig) TokenURL() string {
	return strings.TrimRight(c.LoginURL, "/") + "/services/oauth2/token"
}

// PasswordLogin exchanges user credentials for a session. The instance URL
// comes from the token response.
func PasswordLogin(ctx context.Context, cfg LoginConfig) (*Session, error) {
	if cfg.ClientID == "" || cfg.Username == "" {
		return nil, errors.New(errors.Configuration, "login needs a client id and a username")
	}
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.TokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}

	tok, err := conf.PasswordCredentialsToken(ctx, cfg.Username, cfg.Password+cfg.SecurityToken)
	if err != nil {
		var re *oauth2.RetrieveError
		if stderrors.As(err, &re) {
			e := &errors.E{Kind: errors.AuthFailed, Message: "login rejected", Err: err, Body: re.Body}
			if re.Response != nil {
				e.StatusCode = re.Response.StatusCode
			}
			return nil, e
		}
		if ctx.Err() != nil {
			return nil, errors.Wrap(errors.Cancelled, "login cancelled", err)
		}
		return nil, errors.Wrap(errors.Transport, "login request", err)
	}

	instance, _ := tok.Extra("instance_url").(string)
	if instance == "" {
		return nil, errors.New(errors.Protocol, "token response has no instance_url")
	}
	return New(tok.AccessToken, instance)
}
