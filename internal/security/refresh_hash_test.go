package security

import "testing"

func TestDigestRefreshToken(t *testing.T) {
	d1 := DigestRefreshToken("refresh-1")
	d2 := DigestRefreshToken("refresh-1")
	if d1 != d2 {
		t.Errorf("digest not stable: %q vs %q", d1, d2)
	}
	if len(d1) != 64 {
		t.Errorf("digest length = %d, want 64", len(d1))
	}
	if d1 == DigestRefreshToken("refresh-2") {
		t.Error("different tokens produced the same digest")
	}
}
