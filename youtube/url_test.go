package youtube

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantID VideoID
	}{
		{"watch with playlist", "https://www.youtube.com/watch?v=abc123&list=xyz", "abc123"},
		{"watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"param order", "https://youtube.com/watch?feature=share&v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"mobile", "https://m.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"short link with params", "https://youtu.be/dQw4w9WgXcQ?si=abc&t=10", "dQw4w9WgXcQ"},
		{"shorts", "https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"embed", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"surrounding whitespace", "  https://youtu.be/a-b_c  ", "a-b_c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, canonical, err := Normalize(tt.input)
			if err != nil {
				t.Fatalf("Normalize(%q) error: %v", tt.input, err)
			}
			if id != tt.wantID {
				t.Errorf("id = %q, want %q", id, tt.wantID)
			}
			if want := "https://www.youtube.com/watch?v=" + string(tt.wantID); canonical != want {
				t.Errorf("canonical = %q, want %q", canonical, want)
			}
		})
	}
}

func TestNormalizeInvalid(t *testing.T) {
	inputs := []string{
		"",
		"https://example.com/watch?v=abc123",
		"https://www.youtube.com/",
		"https://www.youtube.com/watch",
		"https://www.youtube.com/watch?v=",
		"https://www.youtube.com/watch?v=bad%20id",
		"https://youtu.be/",
		"not a url",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, _, err := Normalize(input)
			if !errors.Is(err, ErrInvalidURL) {
				t.Errorf("Normalize(%q) error = %v, want ErrInvalidURL", input, err)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"https://www.youtube.com/watch?v=abc123&list=xyz",
		"https://youtu.be/dQw4w9WgXcQ?t=1",
		"https://www.youtube.com/shorts/xyz_-9",
	}
	for _, input := range inputs {
		id, canonical, err := Normalize(input)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", input, err)
		}
		id2, canonical2, err := Normalize(canonical)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", canonical, err)
		}
		if id2 != id || canonical2 != canonical {
			t.Errorf("Normalize not idempotent for %q: (%q, %q) then (%q, %q)", input, id, canonical, id2, canonical2)
		}
	}
}

func TestIsYouTubeURL(t *testing.T) {
	tests := map[string]bool{
		"https://www.youtube.com/watch?v=x": true,
		"https://youtu.be/x":                true,
		"https://example.com/youtube":       false,
		"https://vimeo.com/123":             false,
	}
	for input, want := range tests {
		if got := IsYouTubeURL(input); got != want {
			t.Errorf("IsYouTubeURL(%q) = %v, want %v", input, got, want)
		}
	}
}
