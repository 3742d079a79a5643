package textutil

import "testing"

func TestNormalizeLF(t *testing.T) {
	got := string(NormalizeLF([]byte("a:1\r\nb:2\rc:\xff3\n")))
	want := "a:1\nb:2\nc:�3\n"
	if got != want {
		t.Fatalf("NormalizeLF got %q want %q", got, want)
	}
}
