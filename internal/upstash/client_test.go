package upstash

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// fakeRedis returns an httptest server that answers Upstash REST command
// arrays from a canned result map, recording every command it receives.
func fakeRedis(t *testing.T, results map[string]string) (*Client, *[][]string) {
	t.Helper()

	var commands [][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}

		var cmd []string
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			t.Fatalf("decoding command: %v", err)
		}
		commands = append(commands, cmd)

		result, ok := results[cmd[0]]
		if !ok {
			result = "null"
		}
		fmt.Fprintf(w, `{"result":%s}`, result)
	}))
	t.Cleanup(srv.Close)

	return New(srv.URL, "test-token"), &commands
}

func TestGet(t *testing.T) {
	c, _ := fakeRedis(t, map[string]string{"GET": `"hello"`})

	val, ok, err := c.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || val != "hello" {
		t.Errorf("Get() = (%q, %v), want (hello, true)", val, ok)
	}
}

func TestGet_Missing(t *testing.T) {
	c, _ := fakeRedis(t, nil)

	_, ok, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true for missing key")
	}
}

func TestSetEx(t *testing.T) {
	c, commands := fakeRedis(t, map[string]string{"SET": `"OK"`})

	if err := c.SetEx(context.Background(), "k", "v", 60*time.Second); err != nil {
		t.Fatalf("SetEx() error = %v", err)
	}

	want := []string{"SET", "k", "v", "EX", "60"}
	got := (*commands)[0]
	if len(got) != len(want) {
		t.Fatalf("command = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestIncr(t *testing.T) {
	c, _ := fakeRedis(t, map[string]string{"INCR": `3`})

	n, err := c.Incr(context.Background(), "rl:chat:ip_1.2.3.4")
	if err != nil {
		t.Fatalf("Incr() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Incr() = %d, want 3", n)
	}
}

func TestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"WRONGPASS invalid password"}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "bad")
	if _, _, err := c.Get(context.Background(), "k"); err == nil {
		t.Error("Get() error = nil, want error from REST envelope")
	}
}

func TestHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, "t")
	if _, err := c.Incr(context.Background(), "k"); err == nil {
		t.Error("Incr() error = nil, want error on HTTP 503")
	}
}
