package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"blogspark/internal/domain"
)

const githubAPIBase = "https://api.github.com"

// GitHubOAuth runs the authorization-code flow against GitHub and resolves
// the account's primary email.
type GitHubOAuth struct {
	config  *oauth2.Config
	apiBase string
}

func NewGitHubOAuth(clientID, clientSecret, redirectURL string) *GitHubOAuth {
	return &GitHubOAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		apiBase: githubAPIBase,
	}
}

func (g *GitHubOAuth) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *GitHubOAuth) Exchange(ctx context.Context, code string) (*domain.ExternalProfile, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("missing oauth code")
	}
	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("github exchange: %w", err)
	}
	client := g.config.Client(ctx, tok)

	var u githubUser
	if err := g.getJSON(ctx, client, "/user", &u); err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, errors.New("github user id missing")
	}

	email := u.Email
	if email == "" {
		var emails []githubEmail
		if err := g.getJSON(ctx, client, "/user/emails", &emails); err != nil {
			return nil, err
		}
		email = pickGitHubEmail(emails)
	}
	if email == "" {
		return nil, errors.New("email not available from github")
	}

	first, last := splitName(u.Name)
	if first == "" {
		first = u.Login
	}
	return &domain.ExternalProfile{
		Provider:   domain.ProviderGitHub,
		ProviderID: strconv.FormatInt(u.ID, 10),
		Email:      normalizeEmail(email),
		Firstname:  first,
		Lastname:   last,
	}, nil
}

func (g *GitHubOAuth) getJSON(ctx context.Context, client *http.Client, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("build github request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("github %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("github %s: status %d: %s", path, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode github %s: %w", path, err)
	}
	return nil
}

func pickGitHubEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	if len(emails) > 0 {
		return emails[0].Email
	}
	return ""
}

func splitName(full string) (string, string) {
	fields := strings.Fields(full)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	}
	return fields[0], fields[len(fields)-1]
}
