package structs

import (
	"reflect"
	"testing"
)

func TestIdentity_SpawnerEnv(t *testing.T) {
	identity := &Identity{
		Username: "ada",
		AuthState: map[string]any{
			"login_id":      "ada",
			"name":          "Ada Lovelace",
			"sortable_name": "Lovelace, Ada",
			"primary_email": "ada@berkeley.edu",
			"id":            float64(42),
			"lti_user_id":   "ignored",
		},
	}

	got := identity.SpawnerEnv("tok")
	want := map[string]string{
		"OAUTH2_ACCESS_TOKEN":  "tok",
		"OAUTH2_LOGIN_ID":      "ada",
		"OAUTH2_NAME":          "Ada Lovelace",
		"OAUTH2_SORTABLE_NAME": "Lovelace, Ada",
		"OAUTH2_PRIMARY_EMAIL": "ada@berkeley.edu",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SpawnerEnv() = %v, want %v", got, want)
	}
}

func TestIdentity_SpawnerEnv_Sparse(t *testing.T) {
	identity := &Identity{Username: "ada", AuthState: map[string]any{"login_id": "ada"}}
	got := identity.SpawnerEnv("")
	want := map[string]string{"OAUTH2_LOGIN_ID": "ada"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SpawnerEnv() = %v, want %v", got, want)
	}
}
