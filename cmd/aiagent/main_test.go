package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun_Usage(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := run(context.Background(), &out, &errOut, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "Usage: aiagent") {
		t.Errorf("usage output missing:\n%s", out.String())
	}

	out.Reset()
	if err := run(context.Background(), &out, &errOut, []string{"--help"}); err != nil {
		t.Fatalf("run --help: %v", err)
	}
	if !strings.Contains(out.String(), "serve") {
		t.Errorf("help missing commands:\n%s", out.String())
	}
}

func TestRun_UnknownCommandAndFlags(t *testing.T) {
	var out, errOut bytes.Buffer

	if err := run(context.Background(), &out, &errOut, []string{"frobnicate"}); err == nil {
		t.Error("unknown command accepted")
	}
	if err := run(context.Background(), &out, &errOut, []string{"-nope", "serve"}); err == nil {
		t.Error("unknown flag accepted")
	}
	if err := run(context.Background(), &out, &errOut, []string{"-o", "yaml", "version"}); err == nil {
		t.Error("unknown output format accepted")
	}
	if err := run(context.Background(), &out, &errOut, []string{"-shard", "x", "ask", "hi"}); err == nil {
		t.Error("bad shard value accepted")
	}
	if err := run(context.Background(), &out, &errOut, []string{"ask"}); err == nil {
		t.Error("ask without question accepted")
	}
}

func TestRun_Version(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := run(context.Background(), &out, &errOut, []string{"version"}); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out.String(), "AIAgent") {
		t.Errorf("version output = %q", out.String())
	}

	out.Reset()
	if err := run(context.Background(), &out, &errOut, []string{"-o", "json", "version"}); err != nil {
		t.Fatalf("version json: %v", err)
	}
	if !strings.Contains(out.String(), `"version"`) {
		t.Errorf("json version output = %q", out.String())
	}
}

func TestRunInit(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	if err := runInit(&out, dir); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	path := filepath.Join(dir, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config.yaml not created: %v", err)
	}
	if !strings.Contains(string(data), "base_url") {
		t.Errorf("config.yaml content unexpected:\n%s", data)
	}
	if !strings.Contains(out.String(), path) {
		t.Errorf("output missing path: %q", out.String())
	}

	// A second init must not clobber the existing file.
	if err := runInit(&out, dir); err == nil {
		t.Error("runInit overwrote existing config")
	}
}

func TestLoadConfig_Validates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("ai:\n  model: \"\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := loadConfig(path); err == nil {
		t.Error("invalid config accepted")
	}
}
