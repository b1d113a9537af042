package infra

import "testing"

func TestPgxURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@h:5432/db?sslmode=disable": "pgx5://u:p@h:5432/db?sslmode=disable",
		"postgresql://h/db":                        "pgx5://h/db",
		"pgx5://h/db":                              "pgx5://h/db",
	}
	for in, want := range tests {
		if got := pgxURL(in); got != want {
			t.Errorf("pgxURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFirebaseTokenOrganizationID(t *testing.T) {
	tests := []struct {
		claims map[string]interface{}
		want   string
	}{
		{map[string]interface{}{"org_id": "org1"}, "org1"},
		{map[string]interface{}{"organization_id": float64(17)}, "17"},
		{map[string]interface{}{"org_id": ""}, ""},
		{nil, ""},
	}
	for _, tc := range tests {
		tok := &FirebaseToken{Claims: tc.claims}
		if got := tok.OrganizationID(); got != tc.want {
			t.Errorf("OrganizationID(%v) = %q, want %q", tc.claims, got, tc.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	log := NewLogger("debug", "text")
	if log.GetLevel().String() != "debug" {
		t.Fatalf("level = %s", log.GetLevel())
	}
	log = NewLogger("nonsense", "json")
	if log.GetLevel().String() != "info" {
		t.Fatalf("level = %s", log.GetLevel())
	}
}
