package auth

import (
	"golang.org/x/oauth2"
)

// CallbackPath is where Canvas redirects back after authorization.
const CallbackPath = "/auth/canvas/callback"

// ReplaceTokens asks Canvas to invalidate earlier tokens issued to
// the same client on exchange, so tokens don't accumulate per user.
var ReplaceTokens = oauth2.SetAuthURLParam("replace_tokens", "1")

// Endpoints returns the OAuth2 endpoints of a Canvas installation.
// canvasURL must have a trailing slash.
func Endpoints(canvasURL string) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:  canvasURL + "login/oauth2/auth",
		TokenURL: canvasURL + "login/oauth2/token",
	}
}

// OAuthConfig assembles the oauth2 client configuration for the
// Canvas installation at canvasURL, redirecting back to publicURL.
func OAuthConfig(canvasURL, clientID, clientSecret, publicURL string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  publicURL + CallbackPath,
		Endpoint:     Endpoints(canvasURL),
		Scopes:       scopes,
	}
}
