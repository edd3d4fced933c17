package canvas

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/jmartynas/canvas-auth/internal/errs"
)

func fakeCanvas(t *testing.T, requests *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			requests.Add(1)
		}
		switch r.URL.Path {
		case "/api/v1/users/self/profile":
			fmt.Fprint(w, `{
				"id": 42,
				"login_id": "ada",
				"name": "Ada Lovelace",
				"sortable_name": "Lovelace, Ada",
				"primary_email": "Ada@Berkeley.EDU"
			}`)
		case "/api/v1/courses":
			fmt.Fprint(w, `[
				{"id": 12345, "course_code": "Math 98", "enrollments": [{"type": "student"}, {"type": "teacher"}, {"type": "student"}]},
				{"id": 23456, "enrollments": []}
			]`)
		case "/api/v1/users/self/groups":
			fmt.Fprint(w, `[
				{"name": "mygroup1", "context_type": "Course", "course_id": 12345},
				{"name": "mygroup1", "context_type": "Course", "course_id": 12345}
			]`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestAuthenticator_Authenticate(t *testing.T) {
	ts := fakeCanvas(t, nil)
	defer ts.Close()

	a, err := NewAuthenticator(Options{
		BaseURL:          ts.URL + "/",
		StripEmailDomain: "berkeley.edu",
		ManageGroups:     true,
	})
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v", err)
	}

	identity, err := a.Authenticate(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	if identity.Username != "ada" {
		t.Errorf("Username = %q, want %q", identity.Username, "ada")
	}
	if identity.Email != "Ada@Berkeley.EDU" {
		t.Errorf("Email = %q, want raw profile email", identity.Email)
	}
	if identity.Name != "Ada Lovelace" {
		t.Errorf("Name = %q", identity.Name)
	}

	wantGroups := []string{
		"course::12345",
		"course::12345::enrollment_type::student",
		"course::12345::enrollment_type::teacher",
		"course::23456",
		"course::12345::group::mygroup1",
	}
	if !reflect.DeepEqual(identity.Groups, wantGroups) {
		t.Errorf("Groups = %v, want %v", identity.Groups, wantGroups)
	}

	if _, ok := identity.AuthState["login_id"]; !ok {
		t.Error("AuthState missing raw profile fields")
	}
}

func TestAuthenticator_Deterministic(t *testing.T) {
	ts := fakeCanvas(t, nil)
	defer ts.Close()

	a, err := NewAuthenticator(Options{BaseURL: ts.URL + "/", ManageGroups: true})
	if err != nil {
		t.Fatal(err)
	}

	first, err := a.Authenticate(context.Background(), "tok")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		got, err := a.Authenticate(context.Background(), "tok")
		if err != nil {
			t.Fatal(err)
		}
		if got.Username != first.Username || !reflect.DeepEqual(got.Groups, first.Groups) {
			t.Fatalf("Authenticate() not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestAuthenticator_UsernameKey(t *testing.T) {
	ts := fakeCanvas(t, nil)
	defer ts.Close()

	tests := []struct {
		name        string
		usernameKey string
		want        string
	}{
		{"default primary_email", "", "ada@berkeley.edu"},
		{"login_id", "login_id", "ada"},
		{"numeric id", "id", "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAuthenticator(Options{BaseURL: ts.URL + "/", UsernameKey: tt.usernameKey})
			if err != nil {
				t.Fatal(err)
			}
			identity, err := a.Authenticate(context.Background(), "tok")
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if identity.Username != tt.want {
				t.Errorf("Username = %q, want %q", identity.Username, tt.want)
			}
		})
	}
}

func TestAuthenticator_MissingUsernameField(t *testing.T) {
	ts := fakeCanvas(t, nil)
	defer ts.Close()

	a, err := NewAuthenticator(Options{BaseURL: ts.URL + "/", UsernameKey: "sis_user_id"})
	if err != nil {
		t.Fatal(err)
	}
	identity, err := a.Authenticate(context.Background(), "tok")
	if err == nil {
		t.Fatal("expected error for missing username field")
	}
	if !errors.Is(err, errs.ErrAuthenticationFailed) {
		t.Errorf("error = %v, want ErrAuthenticationFailed", err)
	}
	if identity != nil {
		t.Errorf("identity = %+v, want nil on failure", identity)
	}
}

func TestAuthenticator_ManageGroupsDisabled(t *testing.T) {
	var requests atomic.Int64
	ts := fakeCanvas(t, &requests)
	defer ts.Close()

	a, err := NewAuthenticator(Options{BaseURL: ts.URL + "/", ManageGroups: false})
	if err != nil {
		t.Fatal(err)
	}
	identity, err := a.Authenticate(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if len(identity.Groups) != 0 {
		t.Errorf("Groups = %v, want none", identity.Groups)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("canvas requests = %d, want 1 (profile only)", got)
	}
}

func TestAuthenticator_CourseFetchFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/users/self/profile" {
			fmt.Fprint(w, `{"primary_email": "ada@berkeley.edu"}`)
			return
		}
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer ts.Close()

	a, err := NewAuthenticator(Options{BaseURL: ts.URL + "/", ManageGroups: true})
	if err != nil {
		t.Fatal(err)
	}
	identity, err := a.Authenticate(context.Background(), "tok")
	if !errors.Is(err, errs.ErrAuthenticationFailed) {
		t.Errorf("error = %v, want ErrAuthenticationFailed", err)
	}
	if identity != nil {
		t.Errorf("identity = %+v, want nil (no partial identity)", identity)
	}
}

func TestNewAuthenticator_Validation(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{"missing url", Options{}, errs.ErrCanvasURLRequired},
		{"no trailing slash", Options{BaseURL: "https://canvas.example.edu"}, errs.ErrCanvasURLTrailingSlash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAuthenticator(tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewAuthenticator() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		name   string
		strip  string
		input  string
		want   string
	}{
		{"lowercased", "", "Ada@Berkeley.EDU", "ada@berkeley.edu"},
		{"strip matching domain", "berkeley.edu", "ada@berkeley.edu", "ada"},
		{"foreign domain kept", "berkeley.edu", "ada@gmail.com", "ada@gmail.com"},
		{"no strip configured", "", "ada@berkeley.edu", "ada@berkeley.edu"},
		{"suffix must match whole domain", "edu", "ada@berkeley.edu", "ada@berkeley.edu"},
		{"plain username untouched", "berkeley.edu", "ada", "ada"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Authenticator{stripEmailDomain: tt.strip}
			if got := a.NormalizeUsername(tt.input); got != tt.want {
				t.Errorf("NormalizeUsername(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
