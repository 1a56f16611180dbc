package main

import (
	"flag"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"shortsguard/agent/internal/bridge"
	"shortsguard/agent/internal/config"
	"shortsguard/agent/internal/logger"
	"shortsguard/agent/internal/state"
	"shortsguard/internal/detector"
	"shortsguard/internal/dom"
	"shortsguard/internal/scan"
	"shortsguard/internal/settings"
)

func main() {
	var (
		pagePath   = flag.String("page", "-", "HTML document to scan ('-' for stdin)")
		pageURL    = flag.String("url", "", "Navigation URL of the page (required)")
		maxRetries = flag.Int("max-retries", 10, "Maximum retry attempts for backend connection")
		retryDelay = flag.Duration("retry-delay", time.Second, "Base delay between retry attempts")
		oneShot    = flag.Bool("one-shot", false, "Scan once, print the result document and exit")
	)
	flag.Parse()

	cfg := config.Init()
	if err := logger.Init(cfg.LogPath); err != nil {
		os.Exit(1)
	}

	if *pageURL == "" {
		logger.Errorf("-url is required")
		os.Exit(2)
	}
	u, err := url.Parse(*pageURL)
	if err != nil || u.Hostname() == "" {
		logger.Errorf("invalid -url %q", *pageURL)
		os.Exit(2)
	}

	doc, err := loadDocument(*pagePath)
	if err != nil {
		logger.Errorf("cannot load page: %v", err)
		os.Exit(1)
	}

	state.SetAgentID(uuid.NewString())
	state.SetToken(loadToken(cfg.TokenPath))

	br := connectWithRetry(config.BackendAddr(), *maxRetries, *retryDelay)
	if br != nil {
		defer br.Close()
	}

	// No snapshot means fail closed: a nil snapshot evaluates to
	// globally-disabled and nothing on the page is touched.
	var snap *settings.Settings
	if br != nil {
		snap, err = br.FetchSettings()
		if err != nil {
			logger.Warnf("settings fetch failed, blocking stays off: %v", err)
			snap = nil
		}
	}

	reg := detector.NewRegistry()
	opts := []scan.Option{scan.WithDebounce(cfg.Debounce), scan.WithLogger(logger.L)}
	if br != nil {
		opts = append(opts, scan.WithSink(br))
	}
	coord := scan.New(doc, reg, u.Hostname(), *pageURL, snap, opts...)
	defer coord.Close()

	if !coord.Supported() {
		logger.Infof("no platform matches %s, nothing to do", u.Hostname())
		return
	}

	if br != nil {
		br.OnSettingsChanged(func(s *settings.Settings) {
			logger.Infof("settings changed, re-evaluating policy")
			coord.SetSettings(s)
		})
	}

	coord.Start()

	if *oneShot {
		coord.Flush()
		out, err := doc.HTML()
		if err != nil {
			logger.Errorf("render failed: %v", err)
			os.Exit(1)
		}
		os.Stdout.WriteString(out)
		logger.Infof("blocked %d elements", coord.Blocked())
		return
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	coord.Flush()
	logger.Infof("shutting down, blocked %d elements this session", coord.Blocked())
}

func loadDocument(path string) (*dom.Document, error) {
	if path == "-" {
		return dom.Parse(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dom.Parse(f)
}

// loadToken reads the provisioned session token. An absent token file is not
// fatal; the backend refuses everything but PING for unauthorized agents.
func loadToken(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		logger.Warnf("no agent token at %s: %v", path, err)
		return ""
	}
	return strings.TrimSpace(string(b))
}

// connectWithRetry reads the session identity from the shared agent state on
// every attempt, so a token refreshed between attempts is picked up.
func connectWithRetry(addr string, attempts int, delay time.Duration) *bridge.Bridge {
	for i := 0; i < attempts; i++ {
		br, err := bridge.Connect(addr, state.GetAgentID(), state.GetToken())
		if err == nil {
			logger.Infof("connected to authority at %s", addr)
			return br
		}
		logger.Warnf("authority connection failed (attempt %d/%d): %v", i+1, attempts, err)
		time.Sleep(delay)
	}
	logger.Errorf("giving up on authority at %s, running detached", addr)
	return nil
}
