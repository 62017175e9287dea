// Package auth resolves and caches a bearer token from an ordered
// chain of credential sources. The first source that yields a token
// sticks for the process lifetime; later refreshes re-use it rather
// than re-walking the chain, so a flaky higher-priority source cannot
// make the provider oscillate.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"

	"cloudtop/internal/httpclient"
)

const (
	defaultTokenURL  = "https://oauth2.googleapis.com/token"
	metadataTokenURL = "http://metadata.google.internal/computeMetadata/v1/instance/service-accounts/default/token"
	metadataProject  = "http://metadata.google.internal/computeMetadata/v1/project/project-id"

	cloudScope = "https://www.googleapis.com/auth/cloud-platform"

	// refreshMargin is how long before expiry a cached token is
	// considered stale and transparently re-resolved.
	refreshMargin = 60 * time.Second
)

// ErrNoCredentialSource: every source in the chain was absent or
// failed. The session stays alive; the next call retries the chain.
var ErrNoCredentialSource = errors.New("no credential source available (set CLOUDTOP_ACCESS_TOKEN, GOOGLE_APPLICATION_CREDENTIALS, or run 'gcloud auth application-default login')")

// Settings is the environment surface of the credential chain, in
// priority order.
type Settings struct {
	AccessToken     string `envconfig:"CLOUDTOP_ACCESS_TOKEN"`
	CredentialsJSON string `envconfig:"GOOGLE_CREDENTIALS"`
	CredentialsFile string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
	CloudSDKConfig  string `envconfig:"CLOUDSDK_CONFIG"`
	Project         string `envconfig:"GOOGLE_CLOUD_PROJECT"`
	Zone            string `envconfig:"CLOUDSDK_COMPUTE_ZONE"`
}

// SettingsFromEnv reads the credential settings from the environment.
func SettingsFromEnv() (Settings, error) {
	var s Settings
	err := envconfig.Process("", &s)
	return s, err
}

type source int

const (
	sourceNone source = iota
	sourceEnvToken
	sourceInlineJSON
	sourceCredFile
	sourceADC
	sourceMetadata
)

func (s source) String() string {
	switch s {
	case sourceEnvToken:
		return "env-token"
	case sourceInlineJSON:
		return "inline-json"
	case sourceCredFile:
		return "credentials-file"
	case sourceADC:
		return "application-default"
	case sourceMetadata:
		return "metadata-server"
	}
	return "none"
}

// Provider caches one token and serializes refreshes: at most one
// exchange is in flight at a time, and concurrent callers wait for
// and reuse its result.
type Provider struct {
	settings Settings
	client   *httpclient.Client
	log      *slog.Logger

	// Overridable in tests.
	tokenURL         string
	metadataTokenURL string
	now              func() time.Time

	mu         sync.Mutex
	token      string
	expiry     time.Time
	src        source // sticky once a source succeeds
	refreshing chan struct{}
}

func NewProvider(settings Settings, client *httpclient.Client, log *slog.Logger) *Provider {
	return &Provider{
		settings:         settings,
		client:           client,
		log:              log,
		tokenURL:         defaultTokenURL,
		metadataTokenURL: metadataTokenURL,
		now:              time.Now,
	}
}

// Token returns a valid bearer token, resolving or refreshing as
// needed.
func (p *Provider) Token(ctx context.Context) (string, error) {
	for {
		p.mu.Lock()
		if p.token != "" && p.now().Before(p.expiry.Add(-refreshMargin)) {
			tok := p.token
			p.mu.Unlock()
			return tok, nil
		}
		if p.refreshing != nil {
			// Another caller is already exchanging; wait for it and
			// re-check rather than issuing a redundant exchange.
			done := p.refreshing
			p.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		done := make(chan struct{})
		p.refreshing = done
		src := p.src
		p.mu.Unlock()

		tok, expiry, usedSrc, err := p.resolve(ctx, src)

		p.mu.Lock()
		p.refreshing = nil
		close(done)
		if err != nil {
			p.mu.Unlock()
			return "", err
		}
		p.token = tok
		p.expiry = expiry
		p.src = usedSrc
		p.mu.Unlock()
		p.log.Debug("token resolved", "source", usedSrc.String(), "expiry", expiry)
		return tok, nil
	}
}

// farFuture stands in for "no expiry tracking" on direct env tokens.
var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// resolve produces a token. With a sticky source it goes straight
// there; otherwise it walks the chain in priority order.
func (p *Provider) resolve(ctx context.Context, sticky source) (string, time.Time, source, error) {
	if sticky != sourceNone {
		tok, expiry, err := p.resolveFrom(ctx, sticky)
		if err != nil {
			return "", time.Time{}, sourceNone, fmt.Errorf("refreshing from %s: %w", sticky, err)
		}
		return tok, expiry, sticky, nil
	}

	for _, src := range []source{sourceEnvToken, sourceInlineJSON, sourceCredFile, sourceADC, sourceMetadata} {
		if !p.configured(src) {
			continue
		}
		tok, expiry, err := p.resolveFrom(ctx, src)
		if err != nil {
			if src == sourceMetadata || src == sourceADC {
				// Probe sources: absence is normal, move on.
				p.log.Debug("credential source failed", "source", src.String(), "error", err)
				continue
			}
			// An explicitly configured source that fails is an error,
			// not a reason to fall through.
			return "", time.Time{}, sourceNone, err
		}
		return tok, expiry, src, nil
	}
	return "", time.Time{}, sourceNone, ErrNoCredentialSource
}

// configured reports whether src has enough configuration to attempt.
// ADC and the metadata server are always worth probing.
func (p *Provider) configured(src source) bool {
	switch src {
	case sourceEnvToken:
		return p.settings.AccessToken != ""
	case sourceInlineJSON:
		return p.settings.CredentialsJSON != ""
	case sourceCredFile:
		return p.settings.CredentialsFile != ""
	case sourceADC:
		return p.adcPath() != ""
	case sourceMetadata:
		return true
	}
	return false
}

func (p *Provider) resolveFrom(ctx context.Context, src source) (string, time.Time, error) {
	switch src {
	case sourceEnvToken:
		// Direct token: treated as valid for the process lifetime.
		return p.settings.AccessToken, farFuture, nil
	case sourceInlineJSON:
		return p.exchangeJSON(ctx, []byte(p.settings.CredentialsJSON))
	case sourceCredFile:
		b, err := os.ReadFile(p.settings.CredentialsFile)
		if err != nil {
			return "", time.Time{}, fmt.Errorf("reading credentials file: %w", err)
		}
		return p.exchangeJSON(ctx, b)
	case sourceADC:
		path := p.adcPath()
		if path == "" {
			return "", time.Time{}, errors.New("no application default credentials file")
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return "", time.Time{}, fmt.Errorf("reading ADC file: %w", err)
		}
		return p.exchangeJSON(ctx, b)
	case sourceMetadata:
		return p.metadataToken(ctx)
	}
	return "", time.Time{}, errors.New("unknown credential source")
}

// adcPath returns the first application_default_credentials.json that
// exists on disk, honoring CLOUDSDK_CONFIG.
func (p *Provider) adcPath() string {
	var candidates []string
	if p.settings.CloudSDKConfig != "" {
		candidates = append(candidates, filepath.Join(p.settings.CloudSDKConfig, "application_default_credentials.json"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "gcloud", "application_default_credentials.json"))
	}
	if cfg, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(cfg, "gcloud", "application_default_credentials.json"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (p *Provider) metadataToken(ctx context.Context) (string, time.Time, error) {
	res, err := p.client.Send(ctx, "GET", p.metadataTokenURL, map[string]string{"Metadata-Flavor": "Google"}, nil)
	if err != nil {
		return "", time.Time{}, err
	}
	if res.Status < 200 || res.Status >= 300 {
		return "", time.Time{}, fmt.Errorf("metadata server returned %d", res.Status)
	}
	return p.parseTokenResponse(res.Body)
}

func (p *Provider) parseTokenResponse(body []byte) (string, time.Time, error) {
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", time.Time{}, fmt.Errorf("token response not json: %w", err)
	}
	if tr.AccessToken == "" {
		return "", time.Time{}, errors.New("token response missing access_token")
	}
	exp := tr.ExpiresIn
	if exp == 0 {
		exp = 3600
	}
	return tr.AccessToken, p.now().Add(time.Duration(exp) * time.Second), nil
}

// postForm performs a form-encoded token exchange against the
// identity endpoint.
func (p *Provider) postForm(ctx context.Context, form url.Values) (string, time.Time, error) {
	res, err := p.client.Send(ctx, "POST", p.tokenURL,
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

func excerpt(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
