package bridge

import "testing"

func TestContentHashStableAndSensitiveToBody(t *testing.T) {
	h1 := contentHash("text/plain", []byte("hello"))
	h2 := contentHash("text/plain", []byte("hello"))
	h3 := contentHash("text/plain", []byte("goodbye"))

	if h1 != h2 {
		t.Fatalf("contentHash is not deterministic: %q != %q", h1, h2)
	}
	if h1 == h3 {
		t.Fatalf("expected different bodies to hash differently")
	}
}

func TestContentHashSensitiveToMime(t *testing.T) {
	h1 := contentHash("text/plain", []byte("hello"))
	h2 := contentHash("text/markdown", []byte("hello"))
	if h1 == h2 {
		t.Fatalf("expected different mime types to hash differently")
	}
}

func TestPuppetUsernameStable(t *testing.T) {
	a := puppetUsername("did:roomy:alice")
	b := puppetUsername("did:roomy:alice")
	c := puppetUsername("did:roomy:bob")
	if a != b {
		t.Fatalf("puppetUsername is not deterministic: %q != %q", a, b)
	}
	if a == c {
		t.Fatalf("expected different DIDs to produce different usernames")
	}
}
