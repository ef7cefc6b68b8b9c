package video

import (
	"testing"
)

func TestSelectFormatsSortsByHeightThenFPS(t *testing.T) {
	raw := []RawFormat{
		{FormatID: "22", VCodec: "avc1", Height: 720, FPS: 30},
		{FormatID: "299", VCodec: "avc1", Height: 1080, FPS: 60},
		{FormatID: "137", VCodec: "avc1", Height: 1080, FPS: 30},
	}
	got := SelectFormats(raw)

	want := []string{"299", "137", "22"}
	if len(got) != len(want) {
		t.Fatalf("expected %d formats, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].FormatID != id {
			t.Fatalf("position %d: got %s, want %s", i, got[i].FormatID, id)
		}
	}
	if got[0].Resolution != "1080p 60fps" || got[1].Resolution != "1080p" || got[2].Resolution != "720p" {
		t.Fatalf("unexpected labels: %q %q %q", got[0].Resolution, got[1].Resolution, got[2].Resolution)
	}
}

func TestSelectFormatsDedupesKeepingFirst(t *testing.T) {
	raw := []RawFormat{
		{FormatID: "136", VCodec: "avc1", Height: 720, FPS: 30, Filesize: 100},
		{FormatID: "247", VCodec: "vp9", Height: 720, FPS: 30, Filesize: 90},
	}
	got := SelectFormats(raw)
	if len(got) != 1 || got[0].FormatID != "136" {
		t.Fatalf("expected only first format to survive, got %#v", got)
	}
}

func TestSelectFormatsSkipsAudioAndHeightless(t *testing.T) {
	raw := []RawFormat{
		{FormatID: "140", VCodec: "none", Height: 0},
		{FormatID: "sb0", VCodec: "none", Height: 90},
		{FormatID: "x", VCodec: "avc1", Height: 0},
		{FormatID: "18", VCodec: "avc1", Height: 360, FPS: 25, FilesizeApprox: 4096},
	}
	got := SelectFormats(raw)
	if len(got) != 1 || got[0].FormatID != "18" {
		t.Fatalf("unexpected formats: %#v", got)
	}
	if got[0].FilesizeApprox != 4096 {
		t.Fatalf("expected approximate size fallback, got %d", got[0].FilesizeApprox)
	}
}

func TestResolutionLabel(t *testing.T) {
	cases := []struct {
		height int
		fps    float64
		want   string
	}{
		{1080, 60, "1080p 60fps"},
		{1080, 30, "1080p"},
		{480, 0, "480p"},
		{2160, 59.94, "2160p 59.94fps"},
	}
	for _, tc := range cases {
		if got := resolutionLabel(tc.height, tc.fps); got != tc.want {
			t.Fatalf("resolutionLabel(%d, %v) = %q, want %q", tc.height, tc.fps, got, tc.want)
		}
	}
}

func TestParseMetadata(t *testing.T) {
	stdout := "[download] something\n" +
		`{"title":"clip","thumbnail":"https://example.com/t.jpg","duration":12.5,"_filename":"/data/downloads/clip_1920x1080.mp4","formats":[{"format_id":"137","vcodec":"avc1","height":1080,"fps":30,"filesize":null}]}` + "\n"

	meta, err := parseMetadata(stdout)
	if err != nil {
		t.Fatalf("parseMetadata returned error: %v", err)
	}
	if meta.Title != "clip" || meta.Duration != 12.5 || meta.Filename != "/data/downloads/clip_1920x1080.mp4" {
		t.Fatalf("unexpected metadata: %#v", meta)
	}
	if len(meta.Formats) != 1 || meta.Formats[0].Height != 1080 {
		t.Fatalf("unexpected formats: %#v", meta.Formats)
	}

	if _, err := parseMetadata("no json here"); err == nil {
		t.Fatal("expected error when output has no JSON")
	}
}
