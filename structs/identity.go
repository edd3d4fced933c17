package structs

import "strings"

// Identity is the normalized result of a successful Canvas login:
// the username the rest of the system knows the user by, a few
// convenience fields lifted from the profile, the derived group
// names, and the raw profile kept as opaque auth state.
type Identity struct {
	Username string   `json:"username"`
	Email    string   `json:"email,omitempty"`
	Name     string   `json:"name,omitempty"`
	Groups   []string `json:"groups,omitempty"`

	// AuthState is the raw Canvas profile. It is handed to spawned
	// services via SpawnerEnv and never serialized to API clients.
	AuthState map[string]any `json:"-"`
}

// spawner env keys exported from the raw profile, uppercased with an
// OAUTH2_ prefix (e.g. OAUTH2_LOGIN_ID).
var spawnerProfileKeys = []string{"login_id", "name", "sortable_name", "primary_email"}

// SpawnerEnv returns OAUTH2_* environment variables for services
// spawned on behalf of the user.
func (id *Identity) SpawnerEnv(accessToken string) map[string]string {
	env := make(map[string]string)
	if accessToken != "" {
		env["OAUTH2_ACCESS_TOKEN"] = accessToken
	}
	for _, k := range spawnerProfileKeys {
		v, ok := id.AuthState[k]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			env["OAUTH2_"+strings.ToUpper(k)] = s
		}
	}
	return env
}
