package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Session   SessionConfig
	Selectors SelectorConfig
	Harvest   HarvestConfig
	Run       RunConfig
	Output    OutputConfig
	Webhook   WebhookConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity. One harvest holds one page for
	// its whole duration.
	MaxPages int // default: 1

	// DefaultProxy is passed to the browser as --proxy-server.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// SessionConfig controls how a results page is opened for a query.
// The values are read once and never mutated.
type SessionConfig struct {
	// SearchBaseURL is prefixed to the '+'-joined query.
	SearchBaseURL string // default: "https://www.google.com/maps/search/"

	// NavigationTimeout bounds page.Navigate plus the DOM settle wait.
	NavigationTimeout time.Duration // default: 60s

	// ContainerWait is how long to wait for the results panel to appear.
	ContainerWait time.Duration // default: 15s

	// ConsentSelector locates the cookie consent button. Empty disables it.
	ConsentSelector string // default: "[aria-label='Accept all']"

	// ConsentWait is how long to look for the consent button.
	ConsentWait time.Duration // default: 5s

	// ConsentSettle is the pause after clicking the consent button.
	ConsentSettle time.Duration // default: 1.5s

	// Stealth injects the stealth script before navigation.
	Stealth bool // default: true

	// UserAgents is the pool one user agent is drawn from per session.
	UserAgents []string

	// AcceptLanguage is sent as the Accept-Language header.
	AcceptLanguage string // default: "en-US,en;q=0.9"

	// Latitude, Longitude and Accuracy feed the geolocation override.
	Latitude  float64 // default: 12.9716
	Longitude float64 // default: 77.5946
	Accuracy  float64 // default: 100

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// SelectorConfig holds the CSS selectors for the results panel.
type SelectorConfig struct {
	Container string
	Item      string
	Title     string
	Address   string
	Category  string
	Website   string
	Rating    string
	Reviews   string
	Phone     string
}

// HarvestConfig controls the scroll loop pacing and termination.
type HarvestConfig struct {
	StepMin        int           // default: 100
	StepMax        int           // default: 200
	WarmupDelayMin time.Duration // default: 2s
	WarmupDelayMax time.Duration // default: 2.5s
	SettleDelay    time.Duration // default: 1.5s

	// StableRounds is the number of consecutive unchanged heights that
	// end a harvest.
	StableRounds int // default: 1

	// MaxRounds caps harvesting iterations; 0 disables the cap.
	MaxRounds int // default: 0
}

// RunConfig controls the batch over locations × terms.
type RunConfig struct {
	// QueriesFile is an optional YAML file with locations and terms.
	QueriesFile string

	Locations []string
	Terms     []string

	// QueryTimeout bounds one query from page open to persistence.
	QueryTimeout time.Duration // default: 10m

	// QueryInterval is the minimum gap between query starts; 0 disables pacing.
	QueryInterval time.Duration // default: 0
}

// OutputConfig controls where harvested records are persisted.
type OutputConfig struct {
	// Dir receives one CSV file per query.
	Dir string // default: "data_scraped"

	// MongoURI enables the MongoDB mirror when non-empty.
	MongoURI        string
	MongoDatabase   string // default: "harvest"
	MongoCollection string // default: "listings"
}

// WebhookConfig controls per-query event delivery.
type WebhookConfig struct {
	URL    string
	Secret string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 3
}

// CacheConfig controls the harvest response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 200
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// DefaultUserAgents is the user agent pool used when none is configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/92.0.4515.107 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/90.0.4430.93 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.1 Mobile/15E148 Safari/604.1",
}

// DefaultLocations and DefaultTerms form the batch when no query file
// or env override is given.
var (
	DefaultLocations = []string{
		"A F Station Yelahanka", "Air Force Hospital", "Amruthahalli", "Anandnagar (Bangalore)",
		"Arabic College", "Attur", "Austin Town", "Banaswadi", "Bangalore Bazaar", "Benson Town",
		"Bhattarahalli", "BSF Campus Yelahanka", "Byatarayanapura", "C.V.Raman Nagar",
		"CMP Centre And School", "CRPF Campus Yelahanka", "Devasandra", "Doddagubbi",
		"Doddanekkundi", "Domlur",
	}
	DefaultTerms = []string{
		"drill machine", "electric saw", "hand tools kit", "angle grinder", "hardware tools",
	}
)

// Load reads configuration from environment variables with sane defaults.
// When HARVEST_QUERIES_FILE is set, its locations and terms replace the
// defaults; an unreadable file is returned as an error.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: envOr("HARVEST_HOST", "0.0.0.0"),
			Port: envIntOr("HARVEST_PORT", 8080),
			Mode: envOr("HARVEST_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("HARVEST_HEADLESS", true),
			MaxPages:     envIntOr("HARVEST_MAX_PAGES", 1),
			DefaultProxy: os.Getenv("HARVEST_PROXY"),
			NoSandbox:    envBoolOr("HARVEST_NO_SANDBOX", true),
			BrowserBin:   os.Getenv("HARVEST_BROWSER_BIN"),
		},
		Session: SessionConfig{
			SearchBaseURL:     envOr("HARVEST_SEARCH_BASE_URL", "https://www.google.com/maps/search/"),
			NavigationTimeout: envDurationOr("HARVEST_NAV_TIMEOUT", 60*time.Second),
			ContainerWait:     envDurationOr("HARVEST_CONTAINER_WAIT", 15*time.Second),
			ConsentSelector:   envOr("HARVEST_CONSENT_SELECTOR", "[aria-label='Accept all']"),
			ConsentWait:       envDurationOr("HARVEST_CONSENT_WAIT", 5*time.Second),
			ConsentSettle:     envDurationOr("HARVEST_CONSENT_SETTLE", 1500*time.Millisecond),
			Stealth:           envBoolOr("HARVEST_STEALTH", true),
			UserAgents:        envListOr("HARVEST_USER_AGENTS", DefaultUserAgents),
			AcceptLanguage:    envOr("HARVEST_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			Latitude:          envFloatOr("HARVEST_LATITUDE", 12.9716),
			Longitude:         envFloatOr("HARVEST_LONGITUDE", 77.5946),
			Accuracy:          envFloatOr("HARVEST_GEO_ACCURACY", 100),
			BlockedResourceTypes: envSliceOr("HARVEST_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Selectors: SelectorConfig{
			Container: envOr("HARVEST_SEL_CONTAINER", ".m6QErb[aria-label]"),
			Item:      envOr("HARVEST_SEL_ITEM", ".Nv2PK"),
			Title:     envOr("HARVEST_SEL_TITLE", ".qBF1Pd"),
			Address:   envOr("HARVEST_SEL_ADDRESS", ".W4Efsd:last-child > .W4Efsd:nth-of-type(1) > span:last-child"),
			Category:  envOr("HARVEST_SEL_CATEGORY", ".W4Efsd:last-child > .W4Efsd:nth-of-type(1) > span:first-child"),
			Website:   envOr("HARVEST_SEL_WEBSITE", "a.lcr4fd"),
			Rating:    envOr("HARVEST_SEL_RATING", ".MW4etd"),
			Reviews:   envOr("HARVEST_SEL_REVIEWS", ".UY7F9"),
			Phone:     envOr("HARVEST_SEL_PHONE", "a[href^='tel:'], span.fontBodyMedium"),
		},
		Harvest: HarvestConfig{
			StepMin:        envIntOr("HARVEST_STEP_MIN", 100),
			StepMax:        envIntOr("HARVEST_STEP_MAX", 200),
			WarmupDelayMin: envDurationOr("HARVEST_WARMUP_DELAY_MIN", 2000*time.Millisecond),
			WarmupDelayMax: envDurationOr("HARVEST_WARMUP_DELAY_MAX", 2500*time.Millisecond),
			SettleDelay:    envDurationOr("HARVEST_SETTLE_DELAY", 1500*time.Millisecond),
			StableRounds:   envIntOr("HARVEST_STABLE_ROUNDS", 1),
			MaxRounds:      envIntOr("HARVEST_MAX_ROUNDS", 0),
		},
		Run: RunConfig{
			QueriesFile:   os.Getenv("HARVEST_QUERIES_FILE"),
			Locations:     envListOr("HARVEST_LOCATIONS", DefaultLocations),
			Terms:         envListOr("HARVEST_TERMS", DefaultTerms),
			QueryTimeout:  envDurationOr("HARVEST_QUERY_TIMEOUT", 10*time.Minute),
			QueryInterval: envDurationOr("HARVEST_QUERY_INTERVAL", 0),
		},
		Output: OutputConfig{
			Dir:             envOr("HARVEST_OUTPUT_DIR", "data_scraped"),
			MongoURI:        os.Getenv("HARVEST_MONGO_URI"),
			MongoDatabase:   envOr("HARVEST_MONGO_DATABASE", "harvest"),
			MongoCollection: envOr("HARVEST_MONGO_COLLECTION", "listings"),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("HARVEST_WEBHOOK_URL"),
			Secret: os.Getenv("HARVEST_WEBHOOK_SECRET"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("HARVEST_AUTH_ENABLED", true),
			APIKeys: envSliceOr("HARVEST_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("HARVEST_RATE_RPS", 1.0),
			Burst:             envIntOr("HARVEST_RATE_BURST", 3),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("HARVEST_CACHE_MAX_ENTRIES", 200),
		},
		Log: LogConfig{
			Level:  envOr("HARVEST_LOG_LEVEL", "info"),
			Format: envOr("HARVEST_LOG_FORMAT", "json"),
		},
	}

	if cfg.Run.QueriesFile != "" {
		qf, err := LoadQueries(cfg.Run.QueriesFile)
		if err != nil {
			return nil, err
		}
		if len(qf.Locations) > 0 {
			cfg.Run.Locations = qf.Locations
		}
		if len(qf.Terms) > 0 {
			cfg.Run.Terms = qf.Terms
		}
	}

	return cfg, nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	return splitOr(os.Getenv(key), ",", fallback)
}

// envListOr splits on '|' because user agents and place names contain commas.
func envListOr(key string, fallback []string) []string {
	return splitOr(os.Getenv(key), "|", fallback)
}

func splitOr(v, sep string, fallback []string) []string {
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
