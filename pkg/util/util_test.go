package util

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mitchellh/go-homedir"
)

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	testCases := []struct {
		name string
		in   string
		want string
	}{
		{"Tilde Only", "~", home},
		{"Tilde Prefix", "~/.local/share/letsencrypt", filepath.Join(home, ".local", "share", "letsencrypt")},
		{"Dot Segments", "/opt/./envs/../letsencrypt", "/opt/letsencrypt"},
		{"Redundant Separators", "/opt//envs///letsencrypt/", "/opt/envs/letsencrypt"},
		{"Relative Untouched", "envs/le", "envs/le"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExpandPath(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestAbsPath(t *testing.T) {
	got, err := AbsPath("some/../dir")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("expected an absolute path, got %q", got)
	}
	if filepath.Base(got) != "dir" {
		t.Errorf("expected path to end in 'dir', got %q", got)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "setup.py")
	if err := os.WriteFile(file, nil, UserWritableFilePerms); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	if ok, err := Exists(file); err != nil || !ok {
		t.Errorf("Exists(%q) = %v, %v; want true, nil", file, ok, err)
	}
	missing := filepath.Join(dir, "missing")
	if ok, err := Exists(missing); err != nil || ok {
		t.Errorf("Exists(%q) = %v, %v; want false, nil", missing, ok, err)
	}
}

func TestInvertMap(t *testing.T) {
	in := map[int]string{1: "none", 2: "gz", 3: "zst"}
	want := map[string]int{"none": 1, "gz": 2, "zst": 3}
	if got := InvertMap(in); !reflect.DeepEqual(got, want) {
		t.Errorf("InvertMap() = %v, want %v", got, want)
	}
}

func TestDeduplicate(t *testing.T) {
	got := Deduplicate([]string{"acme", ".", "acme", "letsencrypt-nginx", "."})
	want := []string{"acme", ".", "letsencrypt-nginx"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Deduplicate() = %v, want %v", got, want)
	}
}

func TestQuoteArgs(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		want string
	}{
		{"Plain", []string{"virtualenv", "--python", "python3", "/tmp/env"}, "virtualenv --python python3 /tmp/env"},
		{"Space", []string{"python", "/src/my project/setup.py", "develop"}, `python "/src/my project/setup.py" develop`},
		{"Empty Arg", []string{"pip", ""}, `pip ""`},
		{"No Args", nil, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := QuoteArgs(tc.args); got != tc.want {
				t.Errorf("QuoteArgs() = %q, want %q", got, tc.want)
			}
		})
	}
}
