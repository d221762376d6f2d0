package configuration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigurationDefaults(t *testing.T) {
	t.Run("app_defaults_applied", func(t *testing.T) {
		require.NotZero(t, C.App.Port, "port default should be applied")
		require.NotEmpty(t, C.App.BaseURL, "base URL default should be applied")
		require.NotZero(t, C.Publish.WorkersPerPlatform)
		require.NotZero(t, C.Publish.BatchSize)
		require.NotZero(t, C.Publish.PollIntervalSec)
	})

	t.Run("oauth_redirects_default_to_base_url", func(t *testing.T) {
		for _, tag := range []string{"linkedin", "twitter", "bluesky", "tiktok", "pinterest", "instagram", "youtube"} {
			client := C.OAuth.PlatformOAuth(tag)
			require.NotEmpty(t, client.RedirectURI, "redirect URI for %s should never be empty", tag)
		}
	})

	t.Run("unknown_platform_returns_zero_client", func(t *testing.T) {
		client := C.OAuth.PlatformOAuth("myspace")
		require.Empty(t, client.ClientID)
		require.Empty(t, client.RedirectURI)
	})
}

func TestLoadEnvFromFileMissing(t *testing.T) {
	// Missing files are skipped silently.
	LoadEnvFromFile("does-not-exist.env")
}
