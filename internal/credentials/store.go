package credentials

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// Legacy key names older terminal builds wrote the bearer token under,
// checked in this order.
var tokenKeys = []string{"token", "access_token", "jwt_token"}

// Store is a small durable key/value file the terminal uses for local
// settings and credentials (the browser-localStorage equivalent).
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store backed by the given file path. The file is
// created lazily on first write.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Get returns the raw value stored under key
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		log.Printf("⚠️ Failed to read credential store: %v", err)
		return "", false
	}
	v, ok := values[key]
	return v, ok
}

// Set stores value under key
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

// Delete removes key from the store
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	delete(values, key)
	return s.save(values)
}

// ResolveToken returns the bearer token to present on the live channel,
// or false if no valid credential is stored. Legacy key names are
// checked in order, values wrapped as JSON objects are unwrapped, and
// anything that does not look like a signed three-segment token is
// rejected rather than sent to the server.
func (s *Store) ResolveToken() (string, bool) {
	for _, key := range tokenKeys {
		raw, ok := s.Get(key)
		if !ok || raw == "" {
			continue
		}

		token := Normalize(raw)
		if IsValidJWT(token) {
			return token, true
		}
		log.Printf("⚠️ Credential under %q has invalid token shape, skipping", key)
	}
	return "", false
}

// Normalize unwraps a credential that was stored as a JSON object
// ({"access": ...} or {"token": ...}) and strips stray quotes.
func Normalize(raw string) string {
	token := strings.TrimSpace(raw)

	if strings.HasPrefix(token, "{") {
		var wrapped struct {
			Access string `json:"access"`
			Token  string `json:"token"`
		}
		if err := json.Unmarshal([]byte(token), &wrapped); err == nil {
			if wrapped.Access != "" {
				token = wrapped.Access
			} else if wrapped.Token != "" {
				token = wrapped.Token
			}
		}
		// If parsing fails, fall through with the original value
	}

	return strings.Trim(token, `'"`)
}

// IsValidJWT checks the three-segment signed-token shape without
// verifying the signature; verification is the server's job.
func IsValidJWT(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	_, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	return err == nil
}

func (s *Store) load() (map[string]string, error) {
	values := make(map[string]string)

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return values, nil
}

func (s *Store) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return nil
}
