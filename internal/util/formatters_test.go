package util

import "testing"

func TestFormatFileSize(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{180_000, "175.8 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tc := range cases {
		if got := FormatFileSize(tc.in); got != tc.want {
			t.Fatalf("FormatFileSize(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatElapsedTime(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{0, "00:00:00"},
		{7, "00:00:07"},
		{65, "00:01:05"},
		{3599, "00:59:59"},
	}
	for _, tc := range cases {
		if got := FormatElapsedTime(tc.in); got != tc.want {
			t.Fatalf("FormatElapsedTime(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTitleCase(t *testing.T) {
	if got := TitleCase("processing"); got != "Processing" {
		t.Fatalf("got %q", got)
	}
	if got := TitleCase("in attesa"); got != "In Attesa" {
		t.Fatalf("got %q", got)
	}
}
