package jobs

import (
	"reflect"
	"strings"
	"testing"

	"content-empire/manager-go/internal/db"
)

func TestBuildMetadataTitle(t *testing.T) {
	got := BuildMetadata(42, "Morning routine", map[string]any{}, nil, nil)
	if got.Title != "0000042 - Morning routine" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestBuildMetadataDescriptionSource(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]any
		want string
	}{
		{
			name: "prefers original_text",
			meta: map[string]any{"original_text": "full script", "summary": "short"},
			want: "full script",
		},
		{
			name: "falls back to summary",
			meta: map[string]any{"summary": "short"},
			want: "short",
		},
		{
			name: "falls back to title",
			meta: map[string]any{},
			want: "Fallback",
		},
		{
			name: "trims whitespace",
			meta: map[string]any{"original_text": "  padded  \n"},
			want: "padded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildMetadata(1, "Fallback", tt.meta, nil, nil)
			if got.Description != tt.want {
				t.Errorf("description = %q, want %q", got.Description, tt.want)
			}
		})
	}
}

func TestBuildMetadataAffiliateBlock(t *testing.T) {
	affiliates := []db.Affiliate{
		{Name: "Gear", URL: "https://shop.example/gear", Tag: "emp-20", Enabled: true},
		{Name: "Books", URL: "https://books.example/?ref=x", Tag: "emp-20", Enabled: true},
		{Name: "Old", URL: "https://old.example", Enabled: false},
	}
	got := BuildMetadata(1, "Title", map[string]any{"summary": "s"}, affiliates, nil)

	if !strings.Contains(got.Description, "Links:") {
		t.Fatalf("description missing links block: %q", got.Description)
	}
	if !strings.Contains(got.Description, "- Gear: https://shop.example/gear?tag=emp-20") {
		t.Errorf("missing tagged link: %q", got.Description)
	}
	if !strings.Contains(got.Description, "- Books: https://books.example/?ref=x&tag=emp-20") {
		t.Errorf("existing query string should use &: %q", got.Description)
	}
	if strings.Contains(got.Description, "Old") {
		t.Errorf("disabled affiliate leaked into description: %q", got.Description)
	}
}

func TestBuildMetadataNoAffiliates(t *testing.T) {
	got := BuildMetadata(1, "Title", map[string]any{"summary": "s"}, nil, nil)
	if strings.Contains(got.Description, "Links:") {
		t.Errorf("empty affiliate list should omit links block: %q", got.Description)
	}
}

func TestBuildMetadataTags(t *testing.T) {
	meta := map[string]any{
		"topics": []any{"cooking", "Pasta", " "},
	}
	got := BuildMetadata(1, "Title", meta, nil, []string{"pasta", "weeknight", "", "Cooking"})

	want := []string{"cooking", "Pasta", "weeknight"}
	if !reflect.DeepEqual(got.Tags, want) {
		t.Errorf("tags = %v, want %v", got.Tags, want)
	}
}

func TestAffiliateURL(t *testing.T) {
	tests := []struct {
		name string
		aff  db.Affiliate
		want string
	}{
		{"no tag", db.Affiliate{URL: "https://a.example"}, "https://a.example"},
		{"tag appended", db.Affiliate{URL: "https://a.example", Tag: "t1"}, "https://a.example?tag=t1"},
		{"tag after query", db.Affiliate{URL: "https://a.example?x=1", Tag: "t1"}, "https://a.example?x=1&tag=t1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := affiliateURL(tt.aff); got != tt.want {
				t.Errorf("affiliateURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDraftResponse(t *testing.T) {
	comment := db.Comment{Author: "Sam", Body: "Great video"}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"author placeholder", "Thanks for watching, {author}!", "Thanks for watching, Sam!"},
		{"comment placeholder", "Re {comment}: appreciated, {author}", "Re Great video: appreciated, Sam"},
		{"no placeholders", "Thanks!", "Thanks!"},
		{"trims result", "  {author}  ", "Sam"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DraftResponse(tt.template, comment); got != tt.want {
				t.Errorf("DraftResponse() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractYouTubeID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare id", "dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"bare id padded", "  dQw4w9WgXcQ ", "dQw4w9WgXcQ"},
		{"short url", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch url no www", "https://youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"embed url", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"shorts url", "https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"other host", "https://vimeo.com/12345", ""},
		{"garbage", "not a video", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractYouTubeID(tt.input); got != tt.want {
				t.Errorf("extractYouTubeID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
