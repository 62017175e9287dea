package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// serviceAccountKey is the subset of a service-account JSON file we
// need for the JWT-bearer exchange.
type serviceAccountKey struct {
	Type        string `json:"type"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	ProjectID   string `json:"project_id"`
	TokenURI    string `json:"token_uri"`
}

// userCredentials is the authorized_user shape written by
// `gcloud auth application-default login`.
type userCredentials struct {
	Type         string `json:"type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
	QuotaProject string `json:"quota_project_id"`
}

// exchangeJSON turns a credentials JSON blob (service account or
// authorized user) into an access token.
func (p *Provider) exchangeJSON(ctx context.Context, raw []byte) (string, time.Time, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", time.Time{}, fmt.Errorf("parsing credentials json: %w", err)
	}

	switch probe.Type {
	case "", "service_account":
		return p.exchangeServiceAccount(ctx, raw)
	case "authorized_user":
		return p.exchangeUserCredentials(ctx, raw)
	default:
		return "", time.Time{}, fmt.Errorf("unknown credential type %q", probe.Type)
	}
}

// exchangeServiceAccount signs an RS256 JWT-bearer assertion and
// trades it for an access token.
func (p *Provider) exchangeServiceAccount(ctx context.Context, raw []byte) (string, time.Time, error) {
	var sa serviceAccountKey
	if err := json.Unmarshal(raw, &sa); err != nil {
		return "", time.Time{}, fmt.Errorf("parsing service account json: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return "", time.Time{}, fmt.Errorf("service account json missing client_email or private_key")
	}

	tokenURI := sa.TokenURI
	if tokenURI == "" {
		tokenURI = p.tokenURL
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("parsing private key: %w", err)
	}

	now := p.now()
	claims := jwt.MapClaims{
		"iss":   sa.ClientEmail,
		"sub":   sa.ClientEmail,
		"aud":   tokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"scope": cloudScope,
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing assertion: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)
	return p.postFormTo(ctx, tokenURI, form)
}

// exchangeUserCredentials runs the refresh-token grant.
func (p *Provider) exchangeUserCredentials(ctx context.Context, raw []byte) (string, time.Time, error) {
	var uc userCredentials
	if err := json.Unmarshal(raw, &uc); err != nil {
		return "", time.Time{}, fmt.Errorf("parsing user credentials json: %w", err)
	}
	if uc.ClientID == "" || uc.ClientSecret == "" || uc.RefreshToken == "" {
		return "", time.Time{}, fmt.Errorf("user credentials json missing client_id, client_secret or refresh_token")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", uc.ClientID)
	form.Set("client_secret", uc.ClientSecret)
	form.Set("refresh_token", uc.RefreshToken)
	return p.postForm(ctx, form)
}

func (p *Provider) postFormTo(ctx context.Context, tokenURI string, form url.Values) (string, time.Time, error) {
	saved := p.tokenURL
	if tokenURI != saved {
		// Service accounts may carry their own token_uri; honor it for
		// this one exchange without mutating shared state.
		res, err := p.client.Send(ctx, "POST", tokenURI,
			map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
			[]byte(form.Encode()))
		if err != nil {
			return "", time.Time{}, err
		}
		if res.Status < 200 || res.Status >= 300 {
			return "", time.Time{}, fmt.Errorf("token exchange failed (%d): %s", res.Status, excerpt(res.Body))
		}
		return p.parseTokenResponse(res.Body)
	}
	return p.postForm(ctx, form)
}
