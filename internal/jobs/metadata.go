package jobs

import (
	"fmt"
	"strings"

	"content-empire/manager-go/internal/db"
	"content-empire/manager-go/internal/utils"
)

// VideoMetadata is the upload-ready listing built from a video's meta.
type VideoMetadata struct {
	Title       string
	Description string
	Tags        []string
}

// BuildMetadata assembles the listing: the numbered title the channel uses,
// the description from the video's source text plus an affiliate block, and
// tags merged from the video's topics and the channel defaults.
func BuildMetadata(videoID int64, title string, meta map[string]any, affiliates []db.Affiliate, defaultTags []string) VideoMetadata {
	out := VideoMetadata{
		Title: fmt.Sprintf("%07d - %s", videoID, title),
	}

	var description strings.Builder
	if text, ok := utils.GetString(meta, "original_text"); ok && text != "" {
		description.WriteString(strings.TrimSpace(text))
	} else if text, ok := utils.GetString(meta, "summary"); ok && text != "" {
		description.WriteString(strings.TrimSpace(text))
	} else {
		description.WriteString(title)
	}

	enabled := make([]db.Affiliate, 0, len(affiliates))
	for _, a := range affiliates {
		if a.Enabled {
			enabled = append(enabled, a)
		}
	}
	if len(enabled) > 0 {
		description.WriteString("\n\nLinks:\n")
		for _, a := range enabled {
			description.WriteString("- ")
			description.WriteString(a.Name)
			description.WriteString(": ")
			description.WriteString(affiliateURL(a))
			description.WriteString("\n")
		}
	}
	out.Description = strings.TrimRight(description.String(), "\n")

	seen := map[string]bool{}
	appendTag := func(tag string) {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return
		}
		key := strings.ToLower(tag)
		if seen[key] {
			return
		}
		seen[key] = true
		out.Tags = append(out.Tags, tag)
	}
	if topics, ok := utils.GetStringSlice(meta, "topics"); ok {
		for _, topic := range topics {
			appendTag(topic)
		}
	}
	for _, tag := range defaultTags {
		appendTag(tag)
	}

	return out
}

// affiliateURL appends the tracking tag as a query parameter when set.
func affiliateURL(a db.Affiliate) string {
	if a.Tag == "" {
		return a.URL
	}
	sep := "?"
	if strings.Contains(a.URL, "?") {
		sep = "&"
	}
	return a.URL + sep + "tag=" + a.Tag
}
