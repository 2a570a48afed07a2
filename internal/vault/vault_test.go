package vault

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

// mapKV is an in-memory KV.
type mapKV map[string]string

func (m mapKV) GetKV(_ context.Context, path, key string, _ time.Duration) (string, error) {
	v, ok := m[path+"#"+key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func TestParseRef(t *testing.T) {
	path, key, err := ParseRef("vault:secret/lessonforms/emailjs#private_key")
	if err != nil || path != "secret/lessonforms/emailjs" || key != "private_key" {
		t.Fatalf("ParseRef = %q, %q, %v", path, key, err)
	}
	for _, bad := range []string{"secret/x#k", "vault:secret/x", "vault:#k", "vault:secret#k", "vault:secret/x#"} {
		if _, _, err := ParseRef(bad); !errors.Is(err, ErrBadRef) {
			t.Errorf("ParseRef(%q) err = %v", bad, err)
		}
	}
}

func TestResolve(t *testing.T) {
	kv := mapKV{"secret/app#dsn": "user:pw@tcp(db)/forms"}
	ctx := context.Background()

	if v, err := Resolve(ctx, nil, "plain", 0); err != nil || v != "plain" {
		t.Fatalf("literal = %q, %v", v, err)
	}
	if v, err := Resolve(ctx, kv, "vault:secret/app#dsn", 0); err != nil || v != "user:pw@tcp(db)/forms" {
		t.Fatalf("ref = %q, %v", v, err)
	}
	if _, err := Resolve(ctx, kv, "vault:secret/app#missing", 0); err == nil {
		t.Fatal("missing key should error")
	}
	if _, err := Resolve(ctx, nil, "vault:secret/app#dsn", 0); err == nil {
		t.Fatal("reference without client should error")
	}
}

func TestSplitMount(t *testing.T) {
	m, r := splitMount("secret/lessonforms/emailjs")
	if m != "secret" || r != "lessonforms/emailjs" {
		t.Fatalf("splitMount = %q, %q", m, r)
	}
}

// kvServer fakes the KV-v2 read endpoint for secret/lessonforms/emailjs.
func kvServer(t *testing.T, hits *atomic.Int32) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/secret/data/lessonforms/emailjs" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"data":{"private_key":"pk-123","port":8080},` +
			`"metadata":{"created_time":"2026-01-01T00:00:00Z","deletion_time":"","destroyed":false,"version":1}}}`))
	}))
	t.Cleanup(srv.Close)

	cfg := vault.DefaultConfig()
	cfg.Address = srv.URL
	api, err := vault.NewClient(cfg)
	if err != nil {
		t.Fatal(err)
	}
	api.SetToken("test")
	return &Client{api: api, log: zap.NewNop().Sugar(), cache: make(map[string]cached)}
}

func TestGetKVCaches(t *testing.T) {
	var hits atomic.Int32
	c := kvServer(t, &hits)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := c.GetKV(ctx, "secret/lessonforms/emailjs", "private_key", time.Minute)
		if err != nil || v != "pk-123" {
			t.Fatalf("GetKV = %q, %v", v, err)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("vault reads = %d, want 1 while cached", n)
	}

	if _, err := c.GetKV(ctx, "secret/lessonforms/emailjs", "private_key", 0); err != nil {
		t.Fatal(err)
	}
	if n := hits.Load(); n != 2 {
		t.Fatalf("ttl 0 must bypass the cache, reads = %d", n)
	}
}

func TestGetKVErrors(t *testing.T) {
	var hits atomic.Int32
	c := kvServer(t, &hits)
	ctx := context.Background()

	if _, err := c.GetKV(ctx, "secret/lessonforms/emailjs", "missing", 0); err == nil {
		t.Fatal("absent key should error")
	}
	if _, err := c.GetKV(ctx, "secret/lessonforms/emailjs", "port", 0); err == nil {
		t.Fatal("non-string value should error")
	}
	if _, err := c.GetKV(ctx, "", "k", 0); !errors.Is(err, ErrBadRef) {
		t.Fatalf("empty path err = %v", err)
	}
}

func TestRenewLoopStopsWithContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":["permission denied"]}`, http.StatusForbidden)
	}))
	defer srv.Close()
	t.Setenv("VAULT_ADDR", srv.URL)
	t.Setenv("VAULT_TOKEN", "test")

	ctx, cancel := context.WithCancel(context.Background())
	c, err := New(ctx, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("renewal loop outlived its context")
	}
}
