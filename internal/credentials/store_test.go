package credentials

import (
	"path/filepath"
	"testing"
)

// Well-formed but unsigned token, enough for shape validation
const testJWT = "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJzdWIiOiIxIn0.abc"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "terminal.json"))
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	if _, ok := s.Get("token"); ok {
		t.Error("A fresh store must be empty")
	}

	if err := s.Set("token", testJWT); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok := s.Get("token")
	if !ok || got != testJWT {
		t.Errorf("Get returned %q, %v", got, ok)
	}

	if err := s.Delete("token"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := s.Get("token"); ok {
		t.Error("Deleted key must be gone")
	}
}

func TestResolveToken_LegacyKeyOrder(t *testing.T) {
	s := newTestStore(t)

	// Only the oldest legacy key is present
	if err := s.Set("jwt_token", testJWT); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	token, ok := s.ResolveToken()
	if !ok || token != testJWT {
		t.Fatalf("ResolveToken = %q, %v; want the legacy credential", token, ok)
	}

	// The current key wins over legacy ones
	other := "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJzdWIiOiIyIn0.def"
	if err := s.Set("token", other); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	token, ok = s.ResolveToken()
	if !ok || token != other {
		t.Errorf("ResolveToken = %q, want the token key to take precedence", token)
	}
}

func TestResolveToken_UnwrapsJSONValues(t *testing.T) {
	cases := []struct {
		name  string
		value string
	}{
		{"access wrapper", `{"access":"` + testJWT + `"}`},
		{"token wrapper", `{"token":"` + testJWT + `"}`},
		{"quoted", `"` + testJWT + `"`},
		{"whitespace", "  " + testJWT + "\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestStore(t)
			if err := s.Set("token", tc.value); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			token, ok := s.ResolveToken()
			if !ok || token != testJWT {
				t.Errorf("ResolveToken = %q, %v; want the unwrapped token", token, ok)
			}
		})
	}
}

func TestResolveToken_RejectsInvalidShapes(t *testing.T) {
	s := newTestStore(t)

	for _, bad := range []string{"", "not-a-token", "a.b", "a.b.c.d", "..", "null"} {
		if err := s.Set("token", bad); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if token, ok := s.ResolveToken(); ok {
			t.Errorf("ResolveToken accepted %q as %q", bad, token)
		}
	}
}

func TestResolveToken_FallsPastInvalidKey(t *testing.T) {
	s := newTestStore(t)

	// Garbage under the preferred key must not mask a valid legacy one
	if err := s.Set("token", "garbage"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set("access_token", testJWT); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	token, ok := s.ResolveToken()
	if !ok || token != testJWT {
		t.Errorf("ResolveToken = %q, %v; want the valid legacy credential", token, ok)
	}
}

func TestIsValidJWT(t *testing.T) {
	if !IsValidJWT(testJWT) {
		t.Error("A three-segment token with decodable header and claims must pass")
	}
	if IsValidJWT("a.b.c") {
		t.Error("Undecodable segments must be rejected")
	}
	if IsValidJWT(testJWT + ".extra") {
		t.Error("Four segments must be rejected")
	}
}
