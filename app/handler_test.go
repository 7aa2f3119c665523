package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/HnustLzh2/http-server/internal/config"
	"github.com/HnustLzh2/http-server/internal/router"
	"github.com/HnustLzh2/http-server/internal/server"
)

type result struct {
	Status  string
	Headers map[string]string
	Body    string
}

func serve(t *testing.T, dir, raw string) result {
	t.Helper()
	mux := router.New()
	registerRoutes(mux, dir)
	s := server.New(config.Default(), mux, zerolog.Nop())

	out, err := s.Handle([]byte(raw))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	head, body, ok := bytes.Cut(out, []byte("\r\n\r\n"))
	if !ok {
		t.Fatalf("no header terminator in %q", out)
	}
	lines := strings.Split(string(head), "\r\n")
	res := result{Status: lines[0], Headers: map[string]string{}, Body: string(body)}
	for _, line := range lines[1:] {
		name, value, _ := strings.Cut(line, ": ")
		res.Headers[name] = value
	}
	return res
}

func TestRoot(t *testing.T) {
	got := serve(t, t.TempDir(), "GET / HTTP/1.1\r\nHost: localhost:4221\r\n\r\n")
	want := result{
		Status:  "HTTP/1.1 200 OK",
		Headers: map[string]string{"Content-Length": "13", "Content-Type": "text/plain"},
		Body:    "Hello, World!",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("response (-want +got):\n%s", diff)
	}
}

func TestEcho(t *testing.T) {
	got := serve(t, t.TempDir(), "GET /echo/abc HTTP/1.1\r\n\r\n")
	if got.Status != "HTTP/1.1 200 OK" || got.Body != "abc" || got.Headers["Content-Length"] != "3" {
		t.Fatalf("got %+v", got)
	}
}

func TestUserAgent(t *testing.T) {
	got := serve(t, t.TempDir(), "GET /user-agent HTTP/1.1\r\nUser-Agent: foobar/1.2.3\r\n\r\n")
	if got.Body != "foobar/1.2.3" {
		t.Fatalf("body=%q", got.Body)
	}
}

func TestUnknownPath(t *testing.T) {
	got := serve(t, t.TempDir(), "GET /abcdefg HTTP/1.1\r\n\r\n")
	if got.Status != "HTTP/1.1 404 Not Found" {
		t.Fatalf("status=%q", got.Status)
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "foo"), []byte("Hello, World!"), 0o644); err != nil {
		t.Fatal(err)
	}
	got := serve(t, dir, "GET /files/foo HTTP/1.1\r\n\r\n")
	want := result{
		Status:  "HTTP/1.1 200 OK",
		Headers: map[string]string{"Content-Length": "13", "Content-Type": "application/octet-stream"},
		Body:    "Hello, World!",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("response (-want +got):\n%s", diff)
	}
}

func TestReadFile_Missing(t *testing.T) {
	got := serve(t, t.TempDir(), "GET /files/missing.txt HTTP/1.1\r\n\r\n")
	if got.Status != "HTTP/1.1 404 Not Found" {
		t.Fatalf("status=%q", got.Status)
	}
	if got.Headers["Content-Type"] != "application/json" {
		t.Fatalf("Content-Type=%q", got.Headers["Content-Type"])
	}
	if got.Body != `{"message":"File not found: missing.txt"}` {
		t.Fatalf("body=%s", got.Body)
	}
}

func TestReadFile_Directory(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	got := serve(t, dir, "GET /files/sub HTTP/1.1\r\n\r\n")
	if got.Status != "HTTP/1.1 500 Internal Server Error" {
		t.Fatalf("status=%q", got.Status)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	got := serve(t, dir, "POST /files/number HTTP/1.1\r\nContent-Length: 5\r\nContent-Type: application/octet-stream\r\n\r\n12345")
	if got.Status != "HTTP/1.1 201 Created" {
		t.Fatalf("status=%q", got.Status)
	}
	b, err := os.ReadFile(filepath.Join(dir, "number"))
	if err != nil {
		t.Fatalf("read written file: %v", err)
	}
	if string(b) != "12345" {
		t.Fatalf("file=%q", b)
	}
}

func TestWriteFile_BadDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	got := serve(t, dir, "POST /files/x HTTP/1.1\r\n\r\ndata")
	if got.Status != "HTTP/1.1 500 Internal Server Error" {
		t.Fatalf("status=%q", got.Status)
	}
	if got.Body != `{"message":"Internal Server Error"}` {
		t.Fatalf("body=%s", got.Body)
	}
}

func TestEcho_Gzip(t *testing.T) {
	got := serve(t, t.TempDir(), "GET /echo/abc HTTP/1.1\r\nAccept-Encoding: gzip\r\n\r\n")
	if got.Headers["Content-Encoding"] != "gzip" {
		t.Fatalf("headers=%v", got.Headers)
	}
}

func TestRootCmd_Flags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"host", "port", "directory", "log-level", "log-pretty", "accept-rate", "accept-burst", "config"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("flag %q not registered", name)
		}
	}
	if f := cmd.Flags().ShorthandLookup("d"); f == nil || f.Name != "directory" {
		t.Error("-d should be shorthand for --directory")
	}
}
