package version_test

import (
	"strings"
	"testing"

	"github.com/edumarques81/stellar-radiobot/internal/version"
)

func TestVersionInfo(t *testing.T) {
	t.Run("Version should not be empty", func(t *testing.T) {
		if version.Version == "" {
			t.Error("Version should not be empty")
		}
	})

	t.Run("Name should be Stellar Radio", func(t *testing.T) {
		if version.Name != "Stellar Radio" {
			t.Errorf("Expected name 'Stellar Radio', got '%s'", version.Name)
		}
	})
}

func TestGetInfo(t *testing.T) {
	info := version.GetInfo()

	if info.Name != version.Name {
		t.Errorf("Expected name '%s', got '%s'", version.Name, info.Name)
	}
	if info.Version != version.Version {
		t.Errorf("Expected version '%s', got '%s'", version.Version, info.Version)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name string
		info version.Info
		want string
	}{
		{"plain", version.Info{Name: "Stellar Radio", Version: "1.0.0"}, "Stellar Radio v1.0.0"},
		{"commit is shortened", version.Info{Name: "Stellar Radio", Version: "1.0.0", GitCommit: "abcdef0123456"}, "Stellar Radio v1.0.0 (abcdef0)"},
		{"short commit", version.Info{Name: "X", Version: "2.0.0", GitCommit: "abc"}, "X v2.0.0 (abc)"},
		{"build time", version.Info{Name: "X", Version: "2.0.0", BuildTime: "2024-01-01"}, "X v2.0.0 built 2024-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserAgent(t *testing.T) {
	tests := []struct {
		info version.Info
		want string
	}{
		{version.Info{Name: "Stellar Radio", Version: "1.0.0"}, "Stellar-Radio/1.0"},
		{version.Info{Name: "Stellar Radio", Version: "2.3.4-rc1"}, "Stellar-Radio/2.3"},
		{version.Info{Name: "Bot", Version: "dev"}, "Bot/dev"},
	}

	for _, tt := range tests {
		if got := tt.info.UserAgent(); got != tt.want {
			t.Errorf("UserAgent(%+v) = %q, want %q", tt.info, got, tt.want)
		}
	}

	if ua := version.GetInfo().UserAgent(); !strings.HasPrefix(ua, "Stellar-Radio/") {
		t.Errorf("default user agent %q should start with Stellar-Radio/", ua)
	}
}
