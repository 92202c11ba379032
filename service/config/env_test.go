package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"NSFW_THRESHOLD", "FFMPEG_MAX_FRAMES", "MAX_ARCHIVE_DEPTH",
		"MAX_ARCHIVE_ENTRIES", "MAX_FILE_SIZE", "HTTP_PORT",
		"REQUEST_TIMEOUT", "DEDUP_FRAMES",
	} {
		t.Setenv(key, "")
	}

	svc := NewEnv()

	if got := svc.GetNsfwThreshold(); got != 0.8 {
		t.Errorf("GetNsfwThreshold() = %v, want 0.8", got)
	}
	if got := svc.GetMaxFrames(); got != 20 {
		t.Errorf("GetMaxFrames() = %d, want 20", got)
	}
	if got := svc.GetMaxArchiveDepth(); got != 3 {
		t.Errorf("GetMaxArchiveDepth() = %d, want 3", got)
	}
	if got := svc.GetMaxArchiveEntries(); got != 256 {
		t.Errorf("GetMaxArchiveEntries() = %d, want 256", got)
	}
	if got := svc.GetMaxFileSize(); got != 20*1024*1024*1024 {
		t.Errorf("GetMaxFileSize() = %d, want 20GB", got)
	}
	if got := svc.GetHTTPPort(); got != 3333 {
		t.Errorf("GetHTTPPort() = %d, want 3333", got)
	}
	if got := svc.GetRequestTimeout(); got != 0 {
		t.Errorf("GetRequestTimeout() = %d, want 0 (disabled)", got)
	}
	if !svc.GetDedupFrames() {
		t.Errorf("GetDedupFrames() = false, want true by default")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NSFW_THRESHOLD", "0.5")
	t.Setenv("FFMPEG_MAX_FRAMES", "7")
	t.Setenv("MAX_FILE_SIZE", "1048576")
	t.Setenv("DEDUP_FRAMES", "0")
	t.Setenv("HTTP_PORT", "8080")

	svc := NewEnv()

	if got := svc.GetNsfwThreshold(); got != 0.5 {
		t.Errorf("GetNsfwThreshold() = %v, want 0.5", got)
	}
	if got := svc.GetMaxFrames(); got != 7 {
		t.Errorf("GetMaxFrames() = %d, want 7", got)
	}
	if got := svc.GetMaxFileSize(); got != 1048576 {
		t.Errorf("GetMaxFileSize() = %d, want 1048576", got)
	}
	if svc.GetDedupFrames() {
		t.Errorf("GetDedupFrames() = true, want false with DEDUP_FRAMES=0")
	}
	if got := svc.GetHTTPPort(); got != 8080 {
		t.Errorf("GetHTTPPort() = %d, want 8080", got)
	}
}

func TestEnvMalformedFallsBackToDefault(t *testing.T) {
	t.Setenv("FFMPEG_MAX_FRAMES", "lots")
	t.Setenv("NSFW_THRESHOLD", "very strict")

	svc := NewEnv()

	if got := svc.GetMaxFrames(); got != 20 {
		t.Errorf("GetMaxFrames() = %d, want default 20 on malformed input", got)
	}
	if got := svc.GetNsfwThreshold(); got != 0.8 {
		t.Errorf("GetNsfwThreshold() = %v, want default 0.8 on malformed input", got)
	}
}

func TestAllowedPathRoots(t *testing.T) {
	tests := []struct {
		name  string
		value string
		media string
		want  []string
	}{
		{
			name:  "default falls back to the media folder",
			media: "/srv/media",
			want:  []string{"/srv/media"},
		},
		{
			name:  "colon separated list",
			value: "/data/incoming:/data/quarantine",
			want:  []string{"/data/incoming", "/data/quarantine"},
		},
		{
			name:  "empty segments are dropped",
			value: ":/data/incoming:",
			want:  []string{"/data/incoming"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Setenv("ALLOWED_PATHS", test.value)
			if test.media != "" {
				t.Setenv("MEDIA_FOLDER", test.media)
			}

			got := NewEnv().GetAllowedPathRoots()
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("GetAllowedPathRoots() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
