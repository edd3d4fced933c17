package canvas

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jmartynas/canvas-auth/internal/errs"
	"github.com/jmartynas/canvas-auth/structs"
)

// default course field used in derived group names. It is present in
// the course URL but conveys nothing about the course; deployments
// usually override it with sis_course_id or course_code.
const DefaultCourseKey = "id"

// DefaultUsernameKey is the profile field the username is derived from.
const DefaultUsernameKey = "primary_email"

// Options configures an Authenticator.
type Options struct {
	// BaseURL of the Canvas installation, with a trailing slash.
	BaseURL string

	// UsernameKey is the profile field the username is taken from.
	// Defaults to primary_email.
	UsernameKey string

	// StripEmailDomain, when set, is removed from usernames of the
	// form local@domain. A user with primary_email ada@berkeley.edu
	// and StripEmailDomain "berkeley.edu" gets the username "ada";
	// ada@gmail.com stays "ada@gmail.com".
	StripEmailDomain string

	// CourseKey is the course field used in derived group names.
	// Defaults to id.
	CourseKey string

	// ManageGroups controls whether courses and group memberships are
	// fetched at all. When false the identity carries no groups.
	ManageGroups bool

	HTTPClient *http.Client
	Log        logrus.FieldLogger
}

// Authenticator turns a valid Canvas access token into a normalized
// identity record. It holds no mutable state; every login is a fresh
// sequence of API calls.
type Authenticator struct {
	client           *Client
	usernameKey      string
	stripEmailDomain string
	courseKey        string
	manageGroups     bool
	log              logrus.FieldLogger
}

// NewAuthenticator validates the options and builds an Authenticator.
func NewAuthenticator(opts Options) (*Authenticator, error) {
	if opts.BaseURL == "" {
		return nil, errs.ErrCanvasURLRequired
	}
	if !strings.HasSuffix(opts.BaseURL, "/") {
		return nil, errs.ErrCanvasURLTrailingSlash
	}
	if opts.UsernameKey == "" {
		opts.UsernameKey = DefaultUsernameKey
	}
	if opts.CourseKey == "" {
		opts.CourseKey = DefaultCourseKey
	}
	return &Authenticator{
		client:           NewClient(opts.BaseURL, opts.HTTPClient, opts.Log),
		usernameKey:      opts.UsernameKey,
		stripEmailDomain: opts.StripEmailDomain,
		courseKey:        opts.CourseKey,
		manageGroups:     opts.ManageGroups,
		log:              opts.Log,
	}, nil
}

// Authenticate fetches the user's profile, and with group management
// enabled their courses and group memberships, and assembles the
// identity record. Any upstream failure or a profile missing the
// username field fails the whole login; no partial identity is
// returned.
func (a *Authenticator) Authenticate(ctx context.Context, accessToken string) (*structs.Identity, error) {
	profile, err := a.client.Profile(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	raw, ok := profile.String(a.usernameKey)
	if !ok {
		return nil, fmt.Errorf("profile has no %q field: %w", a.usernameKey, errs.ErrAuthenticationFailed)
	}

	identity := &structs.Identity{
		Username:  a.NormalizeUsername(raw),
		AuthState: profile,
	}
	if email, ok := profile.String("primary_email"); ok {
		identity.Email = email
	}
	if name, ok := profile.String("name"); ok {
		identity.Name = name
	}

	if a.manageGroups {
		courses, err := a.client.Courses(ctx, accessToken)
		if err != nil {
			return nil, err
		}
		selfGroups, err := a.client.SelfGroups(ctx, accessToken)
		if err != nil {
			return nil, err
		}
		identity.Groups = append(CourseGroups(courses, a.courseKey), MembershipGroups(selfGroups)...)
	}

	return identity, nil
}

// NormalizeUsername lowercases the username and strips the configured
// email domain when it matches exactly.
func (a *Authenticator) NormalizeUsername(username string) string {
	username = strings.ToLower(username)
	if a.stripEmailDomain != "" && strings.HasSuffix(username, "@"+a.stripEmailDomain) {
		return strings.SplitN(username, "@", 2)[0]
	}
	return username
}
