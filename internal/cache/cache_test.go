//go:build unit

package cache

import (
	"bytes"
	"testing"

	"slatewiki/internal/config"
)

func setupCache(t *testing.T) (*Cache, func()) {
	t.Helper()
	c, err := New(config.CacheConfig{FilePath: "file::memory:"})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return c, func() { c.Close() }
}

func TestCache_SetGet(t *testing.T) {
	c, teardown := setupCache(t)
	defer teardown()

	if err := c.Set("page:help", []byte(`{"title":"Help"}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := c.Get("page:help")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte(`{"title":"Help"}`)) {
		t.Errorf("unexpected value: %s", got)
	}

	t.Run("set replaces the whole value", func(t *testing.T) {
		if err := c.Set("page:help", []byte(`{"title":"Other"}`)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, _ := c.Get("page:help")
		if !bytes.Equal(got, []byte(`{"title":"Other"}`)) {
			t.Errorf("expected full replace, got %s", got)
		}
	})

	t.Run("miss is nil, not an error", func(t *testing.T) {
		got, err := c.Get("page:nope")
		if err != nil {
			t.Fatalf("Get on miss failed: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil on miss, got %s", got)
		}
	})
}

func TestCache_Delete(t *testing.T) {
	c, teardown := setupCache(t)
	defer teardown()

	c.Set("page:help", []byte("x"))
	if err := c.Delete("page:help"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got, _ := c.Get("page:help"); got != nil {
		t.Errorf("expected key gone, got %s", got)
	}
}

func TestCache_Lists(t *testing.T) {
	c, teardown := setupCache(t)
	defer teardown()

	for _, path := range []string{"a", "b", "c"} {
		if err := c.ListPush("latestpages", path); err != nil {
			t.Fatalf("ListPush failed: %v", err)
		}
	}

	got, err := c.ListRange("latestpages", 2)
	if err != nil {
		t.Fatalf("ListRange failed: %v", err)
	}
	if len(got) != 2 || got[0] != "c" || got[1] != "b" {
		t.Errorf("expected newest first, got %v", got)
	}

	all, _ := c.ListRange("latestpages", 10)
	if len(all) != 3 {
		t.Errorf("expected 3 entries, got %v", all)
	}

	other, _ := c.ListRange("otherlist", 10)
	if len(other) != 0 {
		t.Errorf("lists must be isolated by key, got %v", other)
	}
}

func TestCache_FlushAll(t *testing.T) {
	c, teardown := setupCache(t)
	defer teardown()

	c.Set("page:help", []byte("x"))
	c.ListPush("latestpages", "help")

	if err := c.FlushAll(); err != nil {
		t.Fatalf("FlushAll failed: %v", err)
	}
	if got, _ := c.Get("page:help"); got != nil {
		t.Error("expected keys flushed")
	}
	if paths, _ := c.ListRange("latestpages", 10); len(paths) != 0 {
		t.Error("expected lists flushed")
	}
}
