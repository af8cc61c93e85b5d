package chromebrowser

import (
	"errors"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResolveChromePath(t *testing.T) {
	t.Setenv("CHROME_PATH", "/env/chrome")

	if got := ResolveChromePath("/explicit/chrome"); got != "/explicit/chrome" {
		t.Errorf("ResolveChromePath(explicit) = %q", got)
	}
	if got := ResolveChromePath(""); got != "/env/chrome" {
		t.Errorf("ResolveChromePath(\"\") = %q, want CHROME_PATH", got)
	}
}

func TestResolveChromePath_NothingInstalled(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("candidate list is PATH based only on linux")
	}
	t.Setenv("CHROME_PATH", "")
	t.Setenv("PATH", "")

	if got := ResolveChromePath(""); got != "" {
		t.Errorf("ResolveChromePath(\"\") = %q, want empty", got)
	}
	if _, err := AllocatorOptions(Options{}); !errors.Is(err, ErrChromeNotFound) {
		t.Errorf("AllocatorOptions() error = %v, want ErrChromeNotFound", err)
	}
}

func TestCandidates(t *testing.T) {
	env := map[string]string{"PROGRAMFILES": `C:\PF`}
	getenv := func(k string) string { return env[k] }

	tests := []struct {
		goos string
		want []string
	}{
		{"linux", []string{"chromium", "chromium-browser", "google-chrome-stable", "google-chrome"}},
		{"windows", []string{`C:\PF\Chromium\Application\chrome.exe`, `C:\PF\Google\Chrome\Application\chrome.exe`}},
		{"plan9", nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, Candidates(tt.goos, getenv)); diff != "" {
			t.Errorf("Candidates(%s) mismatch (-want +got):\n%s", tt.goos, diff)
		}
	}
}

func TestAllocatorOptions(t *testing.T) {
	headless, err := AllocatorOptions(Options{ChromePath: "/bin/chrome", Headless: true})
	if err != nil {
		t.Fatalf("AllocatorOptions() error: %v", err)
	}
	headed, err := AllocatorOptions(Options{ChromePath: "/bin/chrome"})
	if err != nil {
		t.Fatalf("AllocatorOptions() error: %v", err)
	}
	if len(headless) != len(headed)+1 {
		t.Errorf("headless flags = %d, headed = %d, want one extra", len(headless), len(headed))
	}
}

func TestResolveExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix paths")
	}
	if got := resolveExecutable("/bin/sh"); got != "/bin/sh" {
		t.Errorf("resolveExecutable(/bin/sh) = %q", got)
	}
	if got := resolveExecutable("/definitely/not/chrome"); got != "" {
		t.Errorf("resolveExecutable(missing) = %q, want empty", got)
	}
	if got := resolveExecutable("definitely-not-a-command-xyz123"); got != "" {
		t.Errorf("resolveExecutable(missing command) = %q, want empty", got)
	}
}
