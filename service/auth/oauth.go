package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/mridulsharma03/snapnet-server/cmd/config"
	"github.com/mridulsharma03/snapnet-server/cmd/utils"
)

const githubEmailsURL = "https://api.github.com/user/emails"

// GithubOAuth wraps the authorization-code flow against GitHub and
// resolves the account's primary email.
type GithubOAuth struct {
	conf      *oauth2.Config
	emailsURL string
}

func NewGithubOAuth(cfg *config.Config) *GithubOAuth {
	return &GithubOAuth{
		conf: &oauth2.Config{
			ClientID:     cfg.GitClientID,
			ClientSecret: cfg.GitClientSecret,
			RedirectURL:  cfg.GitRedirectURL,
			Scopes:       []string{"user:email"},
			Endpoint:     github.Endpoint,
		},
		emailsURL: githubEmailsURL,
	}
}

func (g *GithubOAuth) AuthURL(state string) string {
	return g.conf.AuthCodeURL(state)
}

// PrimaryEmail exchanges the callback code and asks the GitHub API for
// the account's primary verified email.
func (g *GithubOAuth) PrimaryEmail(ctx context.Context, code string) (string, error) {
	token, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return "", utils.Unauthorized("Invalid Credentials!")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.emailsURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := g.conf.Client(ctx, token).Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", utils.NotFound("Email not found in the git account!")
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Email != "" {
			return e.Email, nil
		}
	}
	if len(emails) > 0 {
		return emails[0].Email, nil
	}
	return "", utils.NotFound("Email not found in the git account!")
}
