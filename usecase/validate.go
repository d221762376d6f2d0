package usecase

import (
	"fmt"
	"unicode/utf8"

	"social-publisher/domain/model"
)

// Per-platform content limits. Counts are in runes, matching how the
// platforms themselves count.
const (
	twitterTextLimit   = 280
	twitterMediaLimit  = 4
	linkedInTextLimit  = 3000
	blueskyTextLimit   = 300
	pinterestTextLimit = 500
	instagramTextLimit = 2200
	tiktokTextLimit    = 2200
	youtubeTitleLimit  = 100
)

// ValidateContent checks the payload against the platform's constraints.
// Returns a *model.ValidationError listing every violated rule, or nil.
// Violations are caller-fixable and never enter the queue.
func ValidateContent(platform model.Platform, content model.PublishContent) error {
	var problems []string

	textLen := utf8.RuneCountInString(content.Text)
	hasVideo := false
	for _, media := range content.Media {
		if media.Type == model.MediaTypeVideo {
			hasVideo = true
		}
	}

	switch platform {
	case model.PlatformTwitter:
		if textLen > twitterTextLimit {
			problems = append(problems, fmt.Sprintf("text exceeds %d characters (%d)", twitterTextLimit, textLen))
		}
		if len(content.Media) > twitterMediaLimit {
			problems = append(problems, fmt.Sprintf("at most %d media items allowed (%d)", twitterMediaLimit, len(content.Media)))
		}
	case model.PlatformLinkedIn:
		if textLen > linkedInTextLimit {
			problems = append(problems, fmt.Sprintf("text exceeds %d characters (%d)", linkedInTextLimit, textLen))
		}
	case model.PlatformBluesky:
		if textLen > blueskyTextLimit {
			problems = append(problems, fmt.Sprintf("text exceeds %d characters (%d)", blueskyTextLimit, textLen))
		}
	case model.PlatformPinterest:
		if textLen > pinterestTextLimit {
			problems = append(problems, fmt.Sprintf("description exceeds %d characters (%d)", pinterestTextLimit, textLen))
		}
		if len(content.Media) == 0 {
			problems = append(problems, "a pin requires an image")
		}
	case model.PlatformInstagram:
		if textLen > instagramTextLimit {
			problems = append(problems, fmt.Sprintf("caption exceeds %d characters (%d)", instagramTextLimit, textLen))
		}
		if len(content.Media) == 0 {
			problems = append(problems, "a post requires at least one media item")
		}
	case model.PlatformTikTok:
		if textLen > tiktokTextLimit {
			problems = append(problems, fmt.Sprintf("caption exceeds %d characters (%d)", tiktokTextLimit, textLen))
		}
		if !hasVideo {
			problems = append(problems, "a post requires a video")
		}
	case model.PlatformYouTube:
		if content.Title == "" {
			problems = append(problems, "a title is required")
		} else if titleLen := utf8.RuneCountInString(content.Title); titleLen > youtubeTitleLimit {
			problems = append(problems, fmt.Sprintf("title exceeds %d characters (%d)", youtubeTitleLimit, titleLen))
		}
		if !hasVideo {
			problems = append(problems, "an upload requires a video")
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &model.ValidationError{Platform: platform, Problems: problems}
}
