package cli

import (
	"strings"
	"testing"
	"time"
)

func TestParseMetricRecords(t *testing.T) {
	data := []byte(`[
		{"video_id": 1, "observed_at": "2026-08-01T15:00:00Z", "views": 120, "watch_minutes": 300, "impressions": 900, "clicks": 40},
		{"video_id": 2, "observed_at": "2026-08-02T18:00:00Z", "views": 55}
	]`)

	metrics, err := parseMetricRecords(data)
	if err != nil {
		t.Fatalf("parseMetricRecords returned error = %v", err)
	}
	if len(metrics) != 2 {
		t.Fatalf("parsed %d records, want 2", len(metrics))
	}
	if metrics[0].VideoID != 1 || metrics[0].Views != 120 || metrics[0].Clicks != 40 {
		t.Errorf("record 0 = %+v", metrics[0])
	}
	want := time.Date(2026, 8, 2, 18, 0, 0, 0, time.UTC)
	if !metrics[1].ObservedAt.Equal(want) {
		t.Errorf("record 1 observed_at = %v, want %v", metrics[1].ObservedAt, want)
	}
}

func TestParseMetricRecordsRejectsWholeFile(t *testing.T) {
	// One bad record in the middle must reject everything, so no prefix of
	// the file can reach the database before the error.
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{
			name: "bad timestamp mid-file",
			data: `[
				{"video_id": 1, "observed_at": "2026-08-01T15:00:00Z", "views": 10},
				{"video_id": 2, "observed_at": "yesterday", "views": 20},
				{"video_id": 3, "observed_at": "2026-08-03T15:00:00Z", "views": 30}
			]`,
			wantErr: "record 1",
		},
		{
			name:    "missing video_id",
			data:    `[{"observed_at": "2026-08-01T15:00:00Z", "views": 10}]`,
			wantErr: "missing video_id",
		},
		{
			name:    "not json",
			data:    `{not json`,
			wantErr: "invalid character",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics, err := parseMetricRecords([]byte(tt.data))
			if err == nil {
				t.Fatal("parseMetricRecords returned nil error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
			if metrics != nil {
				t.Errorf("metrics = %v, want nil on error", metrics)
			}
		})
	}
}

func TestParseCommentRecords(t *testing.T) {
	data := []byte(`[
		{"video_id": 4, "author": "Sam", "body": "Great video", "posted_at": "2026-08-10T09:30:00Z"}
	]`)

	comments, err := parseCommentRecords(data)
	if err != nil {
		t.Fatalf("parseCommentRecords returned error = %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("parsed %d records, want 1", len(comments))
	}
	if comments[0].VideoID != 4 || comments[0].Author != "Sam" || comments[0].Body != "Great video" {
		t.Errorf("record 0 = %+v", comments[0])
	}
}

func TestParseCommentRecordsRejectsWholeFile(t *testing.T) {
	data := []byte(`[
		{"video_id": 4, "author": "Sam", "body": "ok", "posted_at": "2026-08-10T09:30:00Z"},
		{"video_id": 4, "author": "Pat", "body": "later", "posted_at": "last tuesday"}
	]`)

	comments, err := parseCommentRecords(data)
	if err == nil {
		t.Fatal("parseCommentRecords returned nil error")
	}
	if !strings.Contains(err.Error(), "record 1") {
		t.Errorf("error = %q, want it to name record 1", err)
	}
	if comments != nil {
		t.Errorf("comments = %v, want nil on error", comments)
	}
}
