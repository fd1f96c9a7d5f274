package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"climate summit", "-limit", "5"},
			expected: []string{"-limit", "5", "climate summit"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-limit", "5", "climate summit"},
			expected: []string{"-limit", "5", "climate summit"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"climate summit"},
			expected: []string{"climate summit"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "interact positionals then flags",
			args:     []string{"a1", "read", "--duration", "95"},
			expected: []string{"--duration", "95", "a1", "read"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder(%q) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"single quoted arg", []string{"climate summit"}, "climate summit"},
		{"unquoted words", []string{"climate", "summit", "paris"}, "climate summit paris"},
		{"empty", nil, ""},
		{"whitespace trimmed", []string{" ", "mars "}, "mars"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuery(tt.args); got != tt.want {
				t.Errorf("buildQuery(%q) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("HOME", "/home/reader")
	if got, want := defaultConfigPath(), filepath.Join("/home/reader", ".yomu", "config.yaml"); got != want {
		t.Errorf("defaultConfigPath() = %q, want %q", got, want)
	}
}

func TestLoadConfig_explicitPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9191\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, resolved, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if resolved != path {
		t.Errorf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("port = %d, want 9191", cfg.Server.Port)
	}
	if cfg.Storage.DatabasePath != filepath.Join(home, ".yomu", "data", "db", "yomu.db") {
		t.Errorf("database path not resolved against home: %q", cfg.Storage.DatabasePath)
	}
}

func TestLoadConfig_cwdFallback(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cwd := t.TempDir()
	if err := os.WriteFile(filepath.Join(cwd, "config.yaml"), []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(cwd); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(prev) }()

	cfg, resolved, err := loadConfig(defaultConfigPath())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if !cfg.Debug {
		t.Error("expected config from the working directory")
	}
	if filepath.Base(resolved) != "config.yaml" || filepath.Dir(resolved) == filepath.Join(home, ".yomu") {
		t.Errorf("resolved = %q, want the working directory config", resolved)
	}
}

func TestLoadConfig_missing(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
