package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	pagecapture "github.com/porticus-lab/go-page-capture"
	"github.com/porticus-lab/go-page-capture/internal/config"
	"github.com/porticus-lab/go-page-capture/internal/output"
)

// Capture flags.
var (
	flagArchive      bool
	flagOutput       string
	flagMaxPages     int
	flagSettle       time.Duration
	flagWaitImages   bool
	flagViewport     string
	flagFormat       string
	flagQuality      int
	flagOutputDir    string
	flagName         string
	flagChromePath   string
	flagAutoDownload bool
	flagNoSandbox    bool
	flagStealth      bool
)

var captureCmd = &cobra.Command{
	Use:   "capture <url>",
	Short: "Capture a paginated document into a PDF or ZIP archive",
	Long: `Capture opens the URL in headless Chrome, captures each page element in order
and writes the assembled artifact to the output directory.

Examples:
  pagecapture capture https://example.com/doc/123
  pagecapture capture https://example.com/doc/123 --archive --output-dir ./out
  pagecapture capture https://example.com/doc/123 --max-pages 20 --settle 1s
  pagecapture capture https://example.com/doc/123 --viewport 1024x1400 --format jpeg`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	f := captureCmd.Flags()
	f.BoolVar(&flagArchive, "archive", false, "Write a ZIP archive of page images instead of a PDF")
	f.StringVar(&flagOutput, "output", "", "Artifact kind: pdf or archive")
	f.IntVar(&flagMaxPages, "max-pages", 0, "Stop after this many pages (0 = no limit)")
	f.DurationVar(&flagSettle, "settle", 0, "Pause after scrolling each page into view")
	f.BoolVar(&flagWaitImages, "wait-images", false, "End the settle pause early once the page's images have loaded")
	f.StringVar(&flagViewport, "viewport", "", "Browser viewport as WIDTHxHEIGHT (default 1200x1600)")
	f.StringVar(&flagFormat, "format", "", "Page image format: png, jpeg or webp")
	f.IntVar(&flagQuality, "quality", 0, "Compression quality for jpeg and webp (1-100)")
	f.StringVar(&flagOutputDir, "output-dir", "", "Output directory (default: current directory)")
	f.StringVar(&flagName, "name", "", "Output file name without extension (default: derived from the URL)")
	f.StringVar(&flagChromePath, "chrome", "", "Path to the Chrome executable")
	f.BoolVar(&flagAutoDownload, "auto-download", false, "Download Chromium when no local browser is found")
	f.BoolVar(&flagNoSandbox, "no-sandbox", false, "Disable the Chrome sandbox (containers)")
	f.BoolVar(&flagStealth, "stealth", false, "Mask common headless-browser fingerprints")
}

func runCapture(cmd *cobra.Command, args []string) error {
	rawURL := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyCaptureFlags(cmd, cfg); err != nil {
		return err
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	writer, err := output.New(flagOutputDir)
	if err != nil {
		return fmt.Errorf("initializing output writer: %w", err)
	}

	c, err := pagecapture.NewCapturer(append(cfg.CapturerOptions(), pagecapture.WithLogger(log))...)
	if err != nil {
		return err
	}
	defer c.Close()

	capCfg := cfg.CaptureOptions()
	fmt.Fprintf(os.Stdout, "Capturing %s...\n", rawURL)
	art, err := c.Capture(cmd.Context(), rawURL, &capCfg)
	if err != nil {
		return err
	}

	path, err := writer.Write(rawURL, flagName, art)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "✓ Written: %s (%d pages, %d bytes)\n", path, art.Pages(), art.Len())
	return nil
}

// applyCaptureFlags overrides file configuration with explicitly set flags.
func applyCaptureFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if flagArchive && f.Changed("output") && !strings.EqualFold(flagOutput, "archive") && !strings.EqualFold(flagOutput, "zip") {
		return fmt.Errorf("--archive conflicts with --output %s", flagOutput)
	}
	if f.Changed("output") {
		if _, err := config.ParseOutput(flagOutput); err != nil {
			return err
		}
		cfg.Capture.Output = flagOutput
	}
	if flagArchive {
		cfg.Capture.Output = "archive"
	}
	if f.Changed("max-pages") {
		if flagMaxPages < 0 {
			return fmt.Errorf("--max-pages must not be negative")
		}
		cfg.Capture.MaxPages = flagMaxPages
	}
	if f.Changed("settle") {
		cfg.Capture.SettleDelay = flagSettle
	}
	if f.Changed("wait-images") {
		cfg.Capture.WaitForImages = flagWaitImages
	}
	if f.Changed("viewport") {
		w, h, err := parseViewport(flagViewport)
		if err != nil {
			return err
		}
		cfg.Capture.ViewportWidth, cfg.Capture.ViewportHeight = w, h
	}
	if f.Changed("format") {
		cfg.Capture.Format = flagFormat
	}
	if f.Changed("quality") {
		cfg.Capture.Quality = flagQuality
	}
	if f.Changed("chrome") {
		cfg.Browser.ChromePath = flagChromePath
	}
	if flagAutoDownload {
		cfg.Browser.AutoDownload = true
	}
	if flagNoSandbox {
		cfg.Browser.NoSandbox = true
	}
	if flagStealth {
		cfg.Browser.Stealth = true
	}
	return cfg.Validate()
}

// parseViewport parses "WIDTHxHEIGHT", e.g. "1200x1600".
func parseViewport(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid viewport %q: want WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("invalid viewport width %q", ws)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("invalid viewport height %q", hs)
	}
	return w, h, nil
}
