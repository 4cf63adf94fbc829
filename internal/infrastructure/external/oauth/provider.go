package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/pkg/config"
)

// zoomEndpoint is Zoom's OAuth endpoint; x/oauth2 does not ship one
var zoomEndpoint = oauth2.Endpoint{
	AuthURL:   "https://zoom.us/oauth/authorize",
	TokenURL:  "https://zoom.us/oauth/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// Account is the provider-side identity of a connecting user
type Account struct {
	ID    string
	Email string
	Name  string
}

// Provider handles the OAuth2 flow of one conferencing platform
type Provider struct {
	platform    entities.Platform
	config      *oauth2.Config
	userInfoURL string
}

// NewProvider creates a provider from an explicit oauth2 config
func NewProvider(platform entities.Platform, cfg *oauth2.Config, userInfoURL string) *Provider {
	return &Provider{platform: platform, config: cfg, userInfoURL: userInfoURL}
}

// NewProviders builds the Teams, Zoom and Google providers. Platforms
// without a client id are left out. Consent happens outside this service,
// so the configs only carry what token refresh needs.
func NewProviders(cfg *config.Config) map[entities.Platform]*Provider {
	providers := make(map[entities.Platform]*Provider)
	if cfg.Teams.ClientID != "" {
		providers[entities.PlatformTeams] = NewProvider(entities.PlatformTeams, &oauth2.Config{
			ClientID:     cfg.Teams.ClientID,
			ClientSecret: cfg.Teams.ClientSecret,
			Scopes: []string{
				"offline_access",
				"User.Read",
				"Calendars.Read",
				"Mail.Read",
				"OnlineMeetings.Read",
				"OnlineMeetingArtifact.Read.All",
				"OnlineMeetingTranscript.Read.All",
			},
			Endpoint: microsoft.AzureADEndpoint(cfg.Teams.TenantID),
		}, strings.TrimRight(cfg.Teams.GraphBaseURL, "/")+"/me")
	}
	if cfg.Zoom.ClientID != "" {
		providers[entities.PlatformZoom] = NewProvider(entities.PlatformZoom, &oauth2.Config{
			ClientID:     cfg.Zoom.ClientID,
			ClientSecret: cfg.Zoom.ClientSecret,
			Endpoint:     zoomEndpoint,
		}, strings.TrimRight(cfg.Zoom.APIBaseURL, "/")+"/users/me")
	}
	if cfg.Gmeet.ClientID != "" {
		providers[entities.PlatformGmeet] = NewProvider(entities.PlatformGmeet, &oauth2.Config{
			ClientID:     cfg.Gmeet.ClientID,
			ClientSecret: cfg.Gmeet.ClientSecret,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
				"https://www.googleapis.com/auth/calendar.readonly",
				"https://www.googleapis.com/auth/meetings.space.readonly",
				"https://www.googleapis.com/auth/drive.meet.readonly",
			},
			Endpoint: google.Endpoint,
		}, "https://www.googleapis.com/oauth2/v2/userinfo")
	}
	return providers
}

// Platform returns the platform this provider authorizes
func (p *Provider) Platform() entities.Platform {
	return p.platform
}

// Refresh always hits the token endpoint, even when current has not expired yet
func (p *Provider) Refresh(ctx context.Context, current *oauth2.Token) (*oauth2.Token, error) {
	if current == nil || current.RefreshToken == "" {
		return nil, fmt.Errorf("%s: no refresh token", p.platform)
	}
	stale := &oauth2.Token{
		RefreshToken: current.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}
	token, err := p.config.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh %s token: %w", p.platform, err)
	}
	return token, nil
}

// GetAccount retrieves the provider account behind token
func (p *Provider) GetAccount(ctx context.Context, token *oauth2.Token) (*Account, error) {
	client := p.config.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get user info: status=%d, body=%s", resp.StatusCode, string(body))
	}

	// Graph, Zoom and Google name the same fields differently
	var info struct {
		ID                string `json:"id"`
		Email             string `json:"email"`
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
		Name              string `json:"name"`
		DisplayName       string `json:"displayName"`
		FirstName         string `json:"first_name"`
		LastName          string `json:"last_name"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user info: %w", err)
	}

	acct := &Account{ID: info.ID}
	acct.Email = firstNonEmpty(info.Email, info.Mail, info.UserPrincipalName)
	acct.Name = firstNonEmpty(info.Name, info.DisplayName, strings.TrimSpace(info.FirstName+" "+info.LastName))
	acct.Email = entities.NormalizeEmail(acct.Email)
	if acct.ID == "" || acct.Email == "" {
		return nil, fmt.Errorf("%s user info is missing id or email", p.platform)
	}
	return acct, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
