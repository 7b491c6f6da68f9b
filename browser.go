package pagecapture

import (
	"fmt"

	"github.com/go-rod/rod/lib/launcher"
)

// resolveBrowser returns the Chrome executable to launch. An explicit path
// wins; otherwise a browser already installed on the system is preferred,
// and a compatible Chromium build is downloaded only when autoDownload is
// set and nothing was found. The download is cached in ~/.cache/rod/browser
// (Unix) or %APPDATA%\rod\browser (Windows).
//
// An empty result lets chromedp search its own default locations.
func resolveBrowser(cfg capturerConfig) (string, error) {
	if cfg.chromePath != "" {
		return cfg.chromePath, nil
	}
	if path, ok := launcher.LookPath(); ok {
		return path, nil
	}
	if !cfg.autoDownload {
		return "", nil
	}
	path, err := launcher.NewBrowser().Get()
	if err != nil {
		return "", fmt.Errorf("pagecapture: downloading browser: %w", err)
	}
	return path, nil
}
