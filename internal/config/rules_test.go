package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules(t *testing.T) {
	t.Parallel()

	rules := DefaultRules()
	assert.Contains(t, rules.SpamWords, "casino")
	assert.Contains(t, rules.SpamWords, "free money")
	assert.Contains(t, rules.DisposableDomains, "mailinator.com")
	assert.Contains(t, rules.DisposableDomains, "temp-mail.org")
	assert.Empty(t, rules.BlockedIPs)
}

func TestLoadRules(t *testing.T) {
	t.Parallel()

	t.Run("empty path keeps defaults", func(t *testing.T) {
		t.Parallel()
		rules, err := LoadRules("")
		require.NoError(t, err)
		assert.Equal(t, DefaultRules().SpamWords, rules.SpamWords)
	})

	t.Run("file overrides per list", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "rules.yml")
		content := []byte("spam_words:\n  - lottery\nblocked_ips:\n  - 203.0.113.1\n")
		require.NoError(t, os.WriteFile(path, content, 0o644))

		rules, err := LoadRules(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"lottery"}, rules.SpamWords)
		// Unset lists keep the compiled-in defaults.
		assert.Equal(t, DefaultRules().DisposableDomains, rules.DisposableDomains)
		assert.Equal(t, []string{"203.0.113.1"}, rules.BlockedIPs)
	})

	t.Run("missing file errors", func(t *testing.T) {
		t.Parallel()
		_, err := LoadRules("/nonexistent/rules.yml")
		assert.Error(t, err)
	})

	t.Run("malformed yaml errors", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "rules.yml")
		require.NoError(t, os.WriteFile(path, []byte("spam_words: {nope"), 0o644))
		_, err := LoadRules(path)
		assert.Error(t, err)
	})
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{
			Port:            "8480",
			Env:             "development",
			JWTSecret:       "a-long-enough-development-secret-value",
			AnonRateLimit:   5,
			AuthRateLimit:   10,
			RateLimitWindow: time.Hour,
			DuplicateWindow: time.Hour,
			StoreTimeout:    5 * time.Second,
		}
	}

	t.Run("valid development config", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, base().Validate())
	})

	t.Run("missing secret rejected", func(t *testing.T) {
		t.Parallel()
		cfg := base()
		cfg.JWTSecret = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive limits rejected", func(t *testing.T) {
		t.Parallel()
		cfg := base()
		cfg.AnonRateLimit = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("production rejects default secret", func(t *testing.T) {
		t.Parallel()
		cfg := base()
		cfg.Env = "production"
		cfg.JWTSecret = "your-secret-key-change-in-production"
		cfg.DBPassword = "something-strong"
		assert.Error(t, cfg.Validate())
	})

	t.Run("production rejects weak db password", func(t *testing.T) {
		t.Parallel()
		cfg := base()
		cfg.Env = "production"
		cfg.DBPassword = "password"
		assert.Error(t, cfg.Validate())
	})
}

func TestBlockedIPList(t *testing.T) {
	t.Parallel()

	cfg := &Config{BlockedIPs: " 1.2.3.4 , 5.6.7.8,, "}
	assert.Equal(t, []string{"1.2.3.4", "5.6.7.8"}, cfg.BlockedIPList())

	cfg = &Config{BlockedIPs: "   "}
	assert.Nil(t, cfg.BlockedIPList())
}
