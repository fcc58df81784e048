package bridge

import (
	"testing"

	"github.com/ianzepp/monk-ftp/internal/listing"
)

func TestDirCache_GetPut(t *testing.T) {
	c := newDirCache()

	if _, ok := c.Get("/data"); ok {
		t.Error("empty cache reported a hit")
	}

	l := listing.Parse([]string{"-rw-r--r-- 1 root root 5 Jan 01 00:00 f"})
	c.Put("/data", l)

	got, ok := c.Get("/data")
	if !ok {
		t.Fatal("cached listing not returned")
	}
	if got != l {
		t.Error("cache returned a different listing")
	}
}

func TestDirCache_InvalidateIsScoped(t *testing.T) {
	c := newDirCache()
	c.Put("/a", listing.Parse(nil))
	c.Put("/b", listing.Parse(nil))

	c.Invalidate("/a")

	if _, ok := c.Get("/a"); ok {
		t.Error("invalidated entry still cached")
	}
	if _, ok := c.Get("/b"); !ok {
		t.Error("unrelated entry dropped")
	}
}

func TestDirCache_InvalidateMissing(t *testing.T) {
	c := newDirCache()
	// no entry, must not panic
	c.Invalidate("/ghost")
}
