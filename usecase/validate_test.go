package usecase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-publisher/domain/model"
)

func TestValidateContent(t *testing.T) {
	video := []model.MediaRef{{URL: "https://cdn.example.com/v.mp4", Type: model.MediaTypeVideo}}
	image := []model.MediaRef{{URL: "https://cdn.example.com/i.jpg", Type: model.MediaTypeImage}}

	cases := []struct {
		name     string
		platform model.Platform
		content  model.PublishContent
		wantOK   bool
	}{
		{"twitter at limit", model.PlatformTwitter, model.PublishContent{Text: strings.Repeat("x", 280)}, true},
		{"twitter over limit", model.PlatformTwitter, model.PublishContent{Text: strings.Repeat("x", 281)}, false},
		{"twitter too much media", model.PlatformTwitter, model.PublishContent{Text: "ok", Media: []model.MediaRef{image[0], image[0], image[0], image[0], image[0]}}, false},
		{"linkedin at limit", model.PlatformLinkedIn, model.PublishContent{Text: strings.Repeat("y", 3000)}, true},
		{"linkedin over limit", model.PlatformLinkedIn, model.PublishContent{Text: strings.Repeat("y", 3001)}, false},
		{"bluesky over limit", model.PlatformBluesky, model.PublishContent{Text: strings.Repeat("z", 301)}, false},
		{"pinterest without image", model.PlatformPinterest, model.PublishContent{Text: "pin"}, false},
		{"pinterest with image", model.PlatformPinterest, model.PublishContent{Text: "pin", Media: image}, true},
		{"instagram without media", model.PlatformInstagram, model.PublishContent{Text: "caption"}, false},
		{"instagram with media", model.PlatformInstagram, model.PublishContent{Text: "caption", Media: image}, true},
		{"tiktok without video", model.PlatformTikTok, model.PublishContent{Text: "caption", Media: image}, false},
		{"tiktok with video", model.PlatformTikTok, model.PublishContent{Text: "caption", Media: video}, true},
		{"youtube without title", model.PlatformYouTube, model.PublishContent{Media: video}, false},
		{"youtube title too long", model.PlatformYouTube, model.PublishContent{Title: strings.Repeat("t", 101), Media: video}, false},
		{"youtube valid", model.PlatformYouTube, model.PublishContent{Title: "a video", Media: video}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateContent(tc.platform, tc.content)
			if tc.wantOK {
				assert.NoError(t, err)
				return
			}
			var ve *model.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.platform, ve.Platform)
			assert.NotEmpty(t, ve.Problems)
			assert.False(t, model.IsRetryable(err))
		})
	}
}

func TestValidateContentCountsRunesNotBytes(t *testing.T) {
	// 280 multibyte runes are within the limit even though the byte count is not.
	text := strings.Repeat("é", 280)
	require.Greater(t, len(text), 280)
	assert.NoError(t, ValidateContent(model.PlatformTwitter, model.PublishContent{Text: text}))
}

func TestValidateContentJoinsAllProblems(t *testing.T) {
	err := ValidateContent(model.PlatformYouTube, model.PublishContent{Text: "no title, no video"})
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Problems, 2)
}
