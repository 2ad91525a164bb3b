package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/facebookgo/flagenv"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/tollgate-labs/tollgate/adapters/balance"
	"github.com/tollgate-labs/tollgate/adapters/events"
	"github.com/tollgate-labs/tollgate/adapters/store"
	"github.com/tollgate-labs/tollgate/adapters/tokenizer"
	"github.com/tollgate-labs/tollgate/config"
	"github.com/tollgate-labs/tollgate/service"
	"github.com/tollgate-labs/tollgate/transport/http"
)

func initSlog(level string) {
	var programLevel slog.Level
	if err := (&programLevel).UnmarshalText([]byte(level)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v, using info\n", level, err)
		programLevel = slog.LevelInfo
	}

	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: programLevel})
	slog.SetDefault(slog.New(h))
}

// newEventPublisher wires the audit event stream: Redis Streams when a Redis
// URL is configured, an in-process channel otherwise.
func newEventPublisher(redisURL string) (*events.WatermillPublisher, error) {
	logger := watermill.NewSlogLogger(slog.Default())

	if redisURL == "" {
		return events.NewWatermillPublisher(gochannel.NewGoChannel(gochannel.Config{}, logger)), nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: redis.NewClient(opts),
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis publisher: %w", err)
	}

	return events.NewWatermillPublisher(publisher), nil
}

func main() {
	flagenv.Parse()
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	initSlog(cfg.SlogLevel)

	client, err := ethclient.Dial(cfg.RPCEndpoint)
	if err != nil {
		log.Fatalf("Failed to connect to RPC endpoint: %v", err)
	}

	var token common.Address
	if cfg.TokenContract != "" {
		if !common.IsHexAddress(cfg.TokenContract) {
			log.Fatalf("Invalid token contract address: %s", cfg.TokenContract)
		}
		token = common.HexToAddress(cfg.TokenContract)
	}

	eventPub, err := newEventPublisher(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create event publisher: %v", err)
	}

	nonces := store.NewMemoryStore(time.Minute)
	defer nonces.Close()

	authService := service.NewAuthService(
		nonces,
		tokenizer.NewJWTTokenizer([]byte(cfg.SigningSecret)),
		balance.NewChainFetcher(client, token),
		eventPub,
		service.Config{
			Domains:          cfg.Domains,
			ChainID:          cfg.ChainID,
			Threshold:        cfg.Threshold,
			Decimals:         cfg.Decimals,
			NonceTTL:         cfg.NonceTTL,
			SessionTTL:       cfg.SessionTTL,
			ClockSkew:        cfg.ClockSkew,
			RefreshFloor:     cfg.RefreshFloor,
			RecheckOnRefresh: cfg.RecheckOnRefresh,
			FetchTimeout:     cfg.FetchTimeout,
		},
	)

	router := http.SetupRouter(authService, cfg.CORSOrigins)

	slog.Info("starting tollgate", "bind", cfg.Bind, "threshold", cfg.Threshold, "decimals", cfg.Decimals)

	if err := router.Run(cfg.Bind); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
