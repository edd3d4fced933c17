package auth

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jmartynas/canvas-auth/internal/errs"
)

const testSecret = "this-secret-is-at-least-32-characters-long"

func TestMintToken_RoundTrip(t *testing.T) {
	groups := []string{"course::12345", "course::12345::enrollment_type::student"}
	signed, err := MintToken(testSecret, "ada", groups, time.Minute)
	if err != nil {
		t.Fatalf("MintToken() error = %v", err)
	}

	claims, err := ParseToken(testSecret, signed)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Username != "ada" {
		t.Errorf("Username = %q, want %q", claims.Username, "ada")
	}
	if claims.Subject != "ada" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "ada")
	}
	if !reflect.DeepEqual(claims.Groups, groups) {
		t.Errorf("Groups = %v, want %v", claims.Groups, groups)
	}
}

func TestMintToken_EmptySecret(t *testing.T) {
	_, err := MintToken("", "ada", nil, time.Minute)
	if !errors.Is(err, errs.ErrJWTSecretRequired) {
		t.Errorf("MintToken() error = %v, want ErrJWTSecretRequired", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	signed, err := MintToken(testSecret, "ada", nil, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken("another-secret-also-32-characters-xx", signed); !errors.Is(err, errs.ErrInvalidSession) {
		t.Errorf("ParseToken() error = %v, want ErrInvalidSession", err)
	}
}

func TestParseToken_Expired(t *testing.T) {
	signed, err := MintToken(testSecret, "ada", nil, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken(testSecret, signed); !errors.Is(err, errs.ErrInvalidSession) {
		t.Errorf("ParseToken() error = %v, want ErrInvalidSession", err)
	}
}

func TestEndpoints(t *testing.T) {
	ep := Endpoints("https://canvas.example.edu/")
	if ep.AuthURL != "https://canvas.example.edu/login/oauth2/auth" {
		t.Errorf("AuthURL = %q", ep.AuthURL)
	}
	if ep.TokenURL != "https://canvas.example.edu/login/oauth2/token" {
		t.Errorf("TokenURL = %q", ep.TokenURL)
	}
}

func TestOAuthConfig(t *testing.T) {
	cfg := OAuthConfig("https://canvas.example.edu/", "id", "secret", "https://hub.example.edu", []string{"url:GET|/api/v1/users/self/profile"})
	if cfg.RedirectURL != "https://hub.example.edu/auth/canvas/callback" {
		t.Errorf("RedirectURL = %q", cfg.RedirectURL)
	}
	if len(cfg.Scopes) != 1 {
		t.Errorf("Scopes = %v", cfg.Scopes)
	}
}
