package model

import "strings"

// Platform identifies a supported social network.
type Platform string

const (
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTwitter   Platform = "twitter"
	PlatformBluesky   Platform = "bluesky"
	PlatformTikTok    Platform = "tiktok"
	PlatformPinterest Platform = "pinterest"
	PlatformInstagram Platform = "instagram"
	PlatformYouTube   Platform = "youtube"
)

// AllPlatforms lists every platform the publisher knows about.
var AllPlatforms = []Platform{
	PlatformLinkedIn,
	PlatformTwitter,
	PlatformBluesky,
	PlatformTikTok,
	PlatformPinterest,
	PlatformInstagram,
	PlatformYouTube,
}

// ParsePlatform normalizes a platform tag from a URL segment or request body.
func ParsePlatform(s string) (Platform, bool) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllPlatforms {
		if p == known {
			return p, true
		}
	}
	return "", false
}

func (p Platform) String() string { return string(p) }

// IsVideoPlatform reports whether the platform's publish flow includes
// long-running server-side media processing.
func (p Platform) IsVideoPlatform() bool {
	return p == PlatformTikTok || p == PlatformYouTube
}
