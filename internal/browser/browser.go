// Package browser drives headless Chrome to read a profile's name and
// location, optionally routing all page traffic through one proxy.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/profile-scraper/internal/proxy"
	"github.com/JakeFAU/profile-scraper/internal/scrape"
)

// Default selectors for public profile pages.
const (
	DefaultNameSelector     = "h1.top-card-layout__title"
	DefaultLocationSelector = "div.not-first-middot > span:first-child"
	DefaultDismissSelector  = "button.modal__dismiss"
)

// Default login form.
const (
	DefaultLoginURL         = "https://www.linkedin.com/login"
	DefaultEmailSelector    = `input[name="session_key"]`
	DefaultPasswordSelector = `input[name="session_password"]`
	DefaultSubmitSelector   = `button[type="submit"]`
	DefaultReadySelector    = "img.feed-identity-module__member-bg-image"
)

const defaultTimeout = 60 * time.Second

// LoginConfig enables signing in before each extraction.
type LoginConfig struct {
	Enabled          bool
	URL              string
	Email            string
	Password         string
	EmailSelector    string
	PasswordSelector string
	SubmitSelector   string
	// ReadySelector must become visible once the login has gone through.
	ReadySelector string
}

// Config controls the Chrome instance and the extraction selectors.
type Config struct {
	Headless         bool
	ExecPath         string
	NoSandbox        bool
	UserAgent        string
	NameSelector     string
	LocationSelector string
	// DismissSelector is clicked when present; empty disables it.
	DismissSelector string
	Login           LoginConfig
}

// Fetcher implements scrape.Fetcher. Each request gets its own Chrome
// process because the egress proxy is a launch flag.
type Fetcher struct {
	cfg    Config
	logger *zap.Logger
}

// New validates cfg, fills in default selectors and returns a Fetcher.
func New(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	cfg = withDefaults(cfg)
	if cfg.Login.Enabled && (cfg.Login.Email == "" || cfg.Login.Password == "") {
		return nil, errors.New("login enabled without email and password")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{cfg: cfg, logger: logger}, nil
}

func withDefaults(cfg Config) Config {
	if cfg.NameSelector == "" {
		cfg.NameSelector = DefaultNameSelector
	}
	if cfg.LocationSelector == "" {
		cfg.LocationSelector = DefaultLocationSelector
	}
	if cfg.Login.URL == "" {
		cfg.Login.URL = DefaultLoginURL
	}
	if cfg.Login.EmailSelector == "" {
		cfg.Login.EmailSelector = DefaultEmailSelector
	}
	if cfg.Login.PasswordSelector == "" {
		cfg.Login.PasswordSelector = DefaultPasswordSelector
	}
	if cfg.Login.SubmitSelector == "" {
		cfg.Login.SubmitSelector = DefaultSubmitSelector
	}
	if cfg.Login.ReadySelector == "" {
		cfg.Login.ReadySelector = DefaultReadySelector
	}
	return cfg
}

// FetchProfile launches Chrome, optionally logs in, opens req.URL and reads
// the two fields. Failures are *scrape.ExtractionError values.
func (f *Fetcher) FetchProfile(ctx context.Context, req scrape.Request) (scrape.Profile, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, f.allocatorOptions(req.Proxy)...)
	defer allocCancel()
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	logger := f.logger.With(zap.String("url", req.URL), zap.String("proxy", req.Proxy.String()))

	if err := chromedp.Run(taskCtx, f.networkSetupAction()); err != nil {
		return scrape.Profile{}, classify(stageLaunch, err)
	}
	if f.cfg.Login.Enabled {
		if err := chromedp.Run(taskCtx, f.loginActions()...); err != nil {
			return scrape.Profile{}, classify(stageLogin, err)
		}
		logger.Debug("Logged in")
	}
	if err := chromedp.Run(taskCtx, chromedp.Navigate(req.URL)); err != nil {
		return scrape.Profile{}, classify(stageNavigate, err)
	}
	if f.cfg.DismissSelector != "" {
		var dismissed bool
		if err := chromedp.Run(taskCtx, chromedp.Evaluate(dismissScript(f.cfg.DismissSelector), &dismissed)); err != nil {
			logger.Debug("Dismiss failed", zap.Error(err))
		} else if dismissed {
			logger.Debug("Dismissed overlay")
		}
	}

	var profile scrape.Profile
	if err := chromedp.Run(taskCtx, f.extractActions(&profile)...); err != nil {
		return scrape.Profile{}, classify(stageExtract, err)
	}
	profile.Name = strings.TrimSpace(profile.Name)
	profile.Location = strings.TrimSpace(profile.Location)
	if profile.Name == "" || profile.Location == "" {
		return scrape.Profile{}, scrape.NewExtractionError(scrape.KindEmptyField,
			fmt.Errorf("name=%q location=%q", profile.Name, profile.Location))
	}
	return profile, nil
}

func (f *Fetcher) allocatorOptions(via proxy.Proxy) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if f.cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if f.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(f.cfg.ExecPath))
	}
	if f.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if f.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.cfg.UserAgent))
	}
	if !via.IsZero() {
		opts = append(opts, chromedp.ProxyServer(via.URL()))
	}
	return opts
}

func (f *Fetcher) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) loginActions() []chromedp.Action {
	login := f.cfg.Login
	return []chromedp.Action{
		chromedp.Navigate(login.URL),
		chromedp.WaitVisible(login.EmailSelector, chromedp.ByQuery),
		chromedp.SendKeys(login.EmailSelector, login.Email, chromedp.ByQuery),
		chromedp.SendKeys(login.PasswordSelector, login.Password, chromedp.ByQuery),
		chromedp.Click(login.SubmitSelector, chromedp.ByQuery),
		chromedp.WaitVisible(login.ReadySelector, chromedp.ByQuery),
	}
}

func (f *Fetcher) extractActions(profile *scrape.Profile) []chromedp.Action {
	return []chromedp.Action{
		chromedp.WaitVisible(f.cfg.NameSelector, chromedp.ByQuery),
		chromedp.Text(f.cfg.NameSelector, &profile.Name, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.Text(f.cfg.LocationSelector, &profile.Location, chromedp.ByQuery, chromedp.NodeVisible),
	}
}

func dismissScript(selector string) string {
	return fmt.Sprintf(`(() => { const el = document.querySelector(%q); if (!el) { return false; } el.click(); return true; })()`, selector)
}

type stage int

const (
	stageLaunch stage = iota
	stageLogin
	stageNavigate
	stageExtract
)

// classify maps a chromedp failure at the given stage onto an extraction kind.
func classify(at stage, err error) *scrape.ExtractionError {
	deadline := errors.Is(err, context.DeadlineExceeded)
	switch at {
	case stageLaunch:
		if deadline {
			return scrape.NewExtractionError(scrape.KindTimeout, fmt.Errorf("start browser: %w", err))
		}
		return scrape.NewExtractionError(scrape.KindBrowser, fmt.Errorf("start browser: %w", err))
	case stageLogin:
		return scrape.NewExtractionError(scrape.KindLogin, fmt.Errorf("login: %w", err))
	case stageNavigate:
		if deadline {
			return scrape.NewExtractionError(scrape.KindTimeout, fmt.Errorf("navigate: %w", err))
		}
		return scrape.NewExtractionError(scrape.KindNavigation, fmt.Errorf("navigate: %w", err))
	default:
		// Waiting on a selector that never renders ends in the attempt deadline.
		return scrape.NewExtractionError(scrape.KindSelectorNotFound, fmt.Errorf("extract: %w", err))
	}
}

// LookupChrome reports the first Chrome-like executable found on PATH.
func LookupChrome() (string, bool) {
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}
