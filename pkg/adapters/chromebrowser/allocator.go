// Package chromebrowser locates Chrome and starts headless allocators for
// the capture adapters.
package chromebrowser

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/chromedp/chromedp"
)

// ErrChromeNotFound is returned when no Chrome or Chromium executable can be located.
var ErrChromeNotFound = errors.New("chrome not found: install Chrome/Chromium, set CHROME_PATH or chrome_path")

// Options selects the browser binary and its mode.
type Options struct {
	ChromePath string
	Headless   bool
}

// NewAllocator starts an exec allocator for opts. The returned cancel
// function shuts the browser down and must always be called.
func NewAllocator(ctx context.Context, opts Options) (context.Context, context.CancelFunc, error) {
	flags, err := AllocatorOptions(opts)
	if err != nil {
		return nil, nil, err
	}
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, flags...)
	return allocCtx, cancel, nil
}

// AllocatorOptions returns the chromedp flags shared by every capture.
func AllocatorOptions(opts Options) ([]chromedp.ExecAllocatorOption, error) {
	path := ResolveChromePath(opts.ChromePath)
	if path == "" {
		return nil, ErrChromeNotFound
	}

	flags := []chromedp.ExecAllocatorOption{
		chromedp.ExecPath(path),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("hide-scrollbars", true),
		// Local template files load their assets from file:// and https://.
		chromedp.Flag("allow-file-access-from-files", true),
	}
	if opts.Headless {
		flags = append(flags, chromedp.Flag("headless", "new"))
	}
	return flags, nil
}

// ResolveChromePath returns explicitPath if set, then $CHROME_PATH, then the
// first installed candidate for this platform, or "".
func ResolveChromePath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}
	if env := os.Getenv("CHROME_PATH"); env != "" {
		return env
	}
	for _, c := range Candidates(runtime.GOOS, os.Getenv) {
		if p := resolveExecutable(c); p != "" {
			return p
		}
	}
	return ""
}

// Candidates lists where Chromium and Chrome are usually installed on goos,
// Chromium first.
func Candidates(goos string, getenv func(string) string) []string {
	switch goos {
	case "darwin":
		return []string{
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		}
	case "linux":
		return []string{"chromium", "chromium-browser", "google-chrome-stable", "google-chrome"}
	case "windows":
		var out []string
		for _, root := range []string{getenv("PROGRAMFILES"), getenv("PROGRAMFILES(X86)"), getenv("LOCALAPPDATA")} {
			if root == "" {
				continue
			}
			out = append(out,
				root+`\Chromium\Application\chrome.exe`,
				root+`\Google\Chrome\Application\chrome.exe`,
			)
		}
		return out
	}
	return nil
}

func resolveExecutable(nameOrPath string) string {
	if filepath.IsAbs(nameOrPath) {
		if _, err := os.Stat(nameOrPath); err == nil {
			return nameOrPath
		}
		return ""
	}
	if p, err := exec.LookPath(nameOrPath); err == nil {
		return p
	}
	return ""
}
