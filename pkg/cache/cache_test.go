package cache

import (
	"testing"

	"github.com/cuemby/localproxy/pkg/types"
)

func TestDisabledCacheAlwaysMisses(t *testing.T) {
	c, err := New(0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Enabled() {
		t.Fatal("capacity 0 should be disabled")
	}

	key := Key{Method: "GET", Path: "/x/1"}
	c.Insert(key, &types.Response{Status: 200})

	if _, ok := c.Get(key); ok {
		t.Error("disabled cache should never hit")
	}
}

func TestInsertThenHit(t *testing.T) {
	c, err := New(10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	key := Key{Method: "GET", Path: "/x/1"}
	want := &types.Response{Status: 200, Body: []byte("hello")}
	c.Insert(key, want)

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(got.Body) != "hello" {
		t.Errorf("Body = %q, want %q", got.Body, "hello")
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c, err := New(2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	k1 := Key{Method: "GET", Path: "/1"}
	k2 := Key{Method: "GET", Path: "/2"}
	k3 := Key{Method: "GET", Path: "/3"}

	c.Insert(k1, &types.Response{Status: 200})
	c.Insert(k2, &types.Response{Status: 200})
	// touch k1 so it is more recently used than k2
	c.Get(k1)
	c.Insert(k3, &types.Response{Status: 200})

	if _, ok := c.Get(k2); ok {
		t.Error("k2 should have been evicted as least recently used")
	}
	if _, ok := c.Get(k1); !ok {
		t.Error("k1 should still be present")
	}
	if _, ok := c.Get(k3); !ok {
		t.Error("k3 should still be present")
	}
}

func TestDistinctMethodsDistinctKeys(t *testing.T) {
	c, err := New(10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	get := Key{Method: "GET", Path: "/x"}
	post := Key{Method: "POST", Path: "/x"}

	c.Insert(get, &types.Response{Status: 200, Body: []byte("get")})
	if _, ok := c.Get(post); ok {
		t.Error("POST should not hit an entry inserted under GET")
	}
}
