package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	bind          = flag.String("bind", ":9000", "network address to bind HTTP to")
	signingSecret = flag.String("signing-secret", "", "secret used to sign session JWTs (required)")
	rpcEndpoint   = flag.String("rpc-endpoint", "", "chain RPC endpoint used for balance lookups (required)")
	tokenContract = flag.String("token-contract", "", "ERC-20 contract to gate on, empty gates on the native coin")
	domains       = flag.String("domains", "", "comma-separated challenge domain allow-list, empty disables the check")
	chainID       = flag.String("chain-id", "", "expected challenge chain id, empty disables the check")
	tokenDecimals = flag.Int("token-decimals", 18, "decimals of the gating token")
	threshold     = flag.String("threshold", "1", "minimum balance in human-readable units")
	nonceTTL      = flag.Int("nonce-ttl-seconds", 300, "challenge nonce lifetime in seconds")
	sessionTTL    = flag.Int("session-ttl-minutes", 20, "session token lifetime in minutes")
	clockSkewMS   = flag.Int("clock-skew-ms", 30000, "challenge freshness tolerance in milliseconds")
	refreshFloor  = flag.Int("refresh-floor-seconds", 120, "remaining session lifetime in seconds above which refresh is a no-op")
	recheck       = flag.Bool("recheck-on-refresh", true, "re-verify the balance before renewing a session")
	corsOrigins   = flag.String("cors-origins", "", "comma-separated CORS origin allow-list, empty allows any")
	fetchTimeout  = flag.Duration("balance-fetch-timeout", 5*time.Second, "per-request budget for the balance lookup")
	redisURL      = flag.String("redis-url", "", "Redis URL for audit event publishing, empty publishes in-process")
	slogLevel     = flag.String("slog-level", "INFO", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
)

// Config is the fully parsed process configuration
type Config struct {
	Bind             string
	SigningSecret    string
	RPCEndpoint      string
	TokenContract    string
	Domains          []string
	ChainID          string
	Decimals         int32
	Threshold        decimal.Decimal
	NonceTTL         time.Duration
	SessionTTL       time.Duration
	ClockSkew        time.Duration
	RefreshFloor     time.Duration
	RecheckOnRefresh bool
	CORSOrigins      []string
	FetchTimeout     time.Duration
	RedisURL         string
	SlogLevel        string
}

type raw struct {
	bind          string
	signingSecret string
	rpcEndpoint   string
	tokenContract string
	domains       string
	chainID       string
	tokenDecimals int
	threshold     string
	nonceTTL      int
	sessionTTL    int
	clockSkewMS   int
	refreshFloor  int
	recheck       bool
	corsOrigins   string
	fetchTimeout  time.Duration
	redisURL      string
	slogLevel     string
}

// Load assembles the configuration from the parsed flags. Call after
// flag.Parse (with flagenv binding flags to environment variables).
func Load() (*Config, error) {
	return build(raw{
		bind:          *bind,
		signingSecret: *signingSecret,
		rpcEndpoint:   *rpcEndpoint,
		tokenContract: *tokenContract,
		domains:       *domains,
		chainID:       *chainID,
		tokenDecimals: *tokenDecimals,
		threshold:     *threshold,
		nonceTTL:      *nonceTTL,
		sessionTTL:    *sessionTTL,
		clockSkewMS:   *clockSkewMS,
		refreshFloor:  *refreshFloor,
		recheck:       *recheck,
		corsOrigins:   *corsOrigins,
		fetchTimeout:  *fetchTimeout,
		redisURL:      *redisURL,
		slogLevel:     *slogLevel,
	})
}

func build(r raw) (*Config, error) {
	if r.signingSecret == "" {
		return nil, fmt.Errorf("signing-secret is required")
	}
	if r.rpcEndpoint == "" {
		return nil, fmt.Errorf("rpc-endpoint is required")
	}
	if r.tokenDecimals < 0 {
		return nil, fmt.Errorf("token-decimals must be non-negative, got %d", r.tokenDecimals)
	}

	thr, err := decimal.NewFromString(r.threshold)
	if err != nil {
		return nil, fmt.Errorf("invalid threshold %q: %w", r.threshold, err)
	}
	if thr.IsNegative() {
		return nil, fmt.Errorf("threshold must be non-negative, got %s", thr)
	}

	return &Config{
		Bind:             r.bind,
		SigningSecret:    r.signingSecret,
		RPCEndpoint:      r.rpcEndpoint,
		TokenContract:    r.tokenContract,
		Domains:          splitList(r.domains),
		ChainID:          r.chainID,
		Decimals:         int32(r.tokenDecimals),
		Threshold:        thr,
		NonceTTL:         time.Duration(r.nonceTTL) * time.Second,
		SessionTTL:       time.Duration(r.sessionTTL) * time.Minute,
		ClockSkew:        time.Duration(r.clockSkewMS) * time.Millisecond,
		RefreshFloor:     time.Duration(r.refreshFloor) * time.Second,
		RecheckOnRefresh: r.recheck,
		CORSOrigins:      splitList(r.corsOrigins),
		FetchTimeout:     r.fetchTimeout,
		RedisURL:         r.redisURL,
		SlogLevel:        r.slogLevel,
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
