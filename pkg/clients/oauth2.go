package clients

import (
	"net/http"

	"golang.org/x/oauth2"
)

// BearerTransport returns a RoundTripper that adds
// "Authorization: Bearer <token>" to every request sent through base.
func BearerTransport(base http.RoundTripper, token string) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: token,
			TokenType:   "Bearer",
		}),
		Base: base,
	}
}
