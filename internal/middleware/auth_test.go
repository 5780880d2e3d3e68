package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/healthfusion/nutriwaste/internal/config"
	"github.com/healthfusion/nutriwaste/internal/logging"
)

// generateAPIKey generates a valid API key of specified length
func generateAPIKey(length int) string {
	key := make([]byte, length)
	for i := range key {
		key[i] = 'a' + byte(i%26)
	}
	return string(key)
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		expected bool
	}{
		{name: "exactly minimum length", key: generateAPIKey(32), expected: true},
		{name: "longer than minimum", key: generateAPIKey(64), expected: true},
		{name: "one short", key: generateAPIKey(31), expected: false},
		{name: "empty", key: "", expected: false},
		{name: "blank of minimum length", key: strings.Repeat(" ", 32), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateAPIKey(tt.key); got != tt.expected {
				t.Errorf("ValidateAPIKey(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := map[string]string{
		"abcdefghijklmnop": "abcd****",
		"abcde":            "abcd****",
		"abcd":             "****",
		"":                 "****",
	}
	for key, want := range tests {
		if got := maskAPIKey(key); got != want {
			t.Errorf("maskAPIKey(%q) = %q, want %q", key, got, want)
		}
	}
}

func newAuthApp(cfg config.AuthConfig) *fiber.App {
	app := fiber.New()
	app.Post("/v1/upload", APIKeyAuth(logging.NewNop(), cfg), func(c *fiber.Ctx) error {
		return c.SendString("stored")
	})
	return app
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	app := newAuthApp(config.AuthConfig{Enabled: false})

	resp, err := app.Test(httptest.NewRequest("POST", "/v1/upload", nil))
	if err != nil {
		t.Fatalf("Failed to test request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestAPIKeyAuth_Enabled(t *testing.T) {
	validKey := generateAPIKey(40)
	app := newAuthApp(config.AuthConfig{Enabled: true, APIKeys: []string{validKey, "short"}})

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
	}{
		{name: "X-API-Key header", headers: map[string]string{"X-API-Key": validKey}, wantStatus: fiber.StatusOK},
		{name: "Bearer token", headers: map[string]string{"Authorization": "Bearer " + validKey}, wantStatus: fiber.StatusOK},
		{name: "plain Authorization", headers: map[string]string{"Authorization": validKey}, wantStatus: fiber.StatusOK},
		{name: "missing key", headers: nil, wantStatus: fiber.StatusUnauthorized},
		{name: "wrong key", headers: map[string]string{"X-API-Key": generateAPIKey(41)}, wantStatus: fiber.StatusUnauthorized},
		{name: "configured but too short", headers: map[string]string{"X-API-Key": "short"}, wantStatus: fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/upload", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("Failed to test request: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}
}

func TestAPIKeyAuth_NoValidKeysRejectsAll(t *testing.T) {
	app := newAuthApp(config.AuthConfig{Enabled: true, APIKeys: []string{"weak"}})

	req := httptest.NewRequest("POST", "/v1/upload", nil)
	req.Header.Set("X-API-Key", "weak")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to test request: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.StatusCode)
	}
}
