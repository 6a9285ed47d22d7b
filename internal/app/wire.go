package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/alanyoungcy/arbscan/internal/blob/s3"
	"github.com/alanyoungcy/arbscan/internal/cache"
	"github.com/alanyoungcy/arbscan/internal/cache/redis"
	"github.com/alanyoungcy/arbscan/internal/config"
	"github.com/alanyoungcy/arbscan/internal/crypto"
	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/notify"
	"github.com/alanyoungcy/arbscan/internal/platform/polymarket"
	"github.com/alanyoungcy/arbscan/internal/store/postgres"
	"github.com/alanyoungcy/arbscan/internal/wallet"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
// Optional concerns (caches, stores, archival, notifications) are nil when
// not configured; the modes degrade accordingly.
type Dependencies struct {
	// Exchange access
	Markets domain.MarketSource
	Gateway domain.OrderGateway
	Quotes  domain.QuoteSource

	// Caches (nil without Redis)
	Books  domain.BookCache
	Prices domain.PriceCache
	Locks  *redis.LockManager

	// Account balance source (trade mode only)
	Account domain.AccountSource

	// Journals (nil without Postgres)
	OppStore  domain.OpportunityStore
	ExecStore domain.ExecutionStore

	// Report archival (nil without S3)
	Archiver *s3blob.Archiver
	Reports  *s3blob.Reader

	Notifier *notify.Notifier
}

// Wire constructs the concrete dependency implementations from the given
// configuration and returns them together with a cleanup function to be
// called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Polymarket clients ---
	deps.Markets = polymarket.NewGammaClient(cfg.Polymarket.GammaHost)

	var clob *polymarket.ClobClient
	if cfg.Mode == "trade" {
		keyHex, err := wallet.LoadPrivateKey(
			cfg.Wallet.PrivateKey,
			cfg.Wallet.EncryptedKeyPath,
			cfg.Wallet.KeyPassword,
		)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: load wallet key: %w", err)
		}
		signer, err := crypto.NewSigner(keyHex, cfg.Polymarket.ChainID)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}

		clob = polymarket.NewClobClient(cfg.Polymarket.ClobHost, signer, nil)
		if err := clob.DeriveAPIKey(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: derive api key: %w", err)
		}

		account, err := wallet.Dial(ctx,
			cfg.Wallet.RPCURL,
			signer.Address(),
			common.HexToAddress(cfg.Wallet.UsdcAddress),
			logger,
		)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet: %w", err)
		}
		closers = append(closers, account.Close)
		deps.Account = account
	} else {
		// Read-only client: quotes and books need no credentials.
		clob = polymarket.NewClobClient(cfg.Polymarket.ClobHost, nil, nil)
	}
	deps.Gateway = clob

	// --- Redis caches ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Books = redis.NewBookCache(redisClient, 0)
		deps.Prices = redis.NewPriceCache(redisClient)
		deps.Locks = redis.NewLockManager(redisClient)
	}

	// Book reads go through the cache when Redis is on; either way upstream
	// fetches get the spread-out jitter.
	deps.Quotes = cache.NewQuoteSource(clob, deps.Books, deps.Prices, logger)

	// --- PostgreSQL journals ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.OppStore = postgres.NewOpportunityStore(pool)
		deps.ExecStore = postgres.NewExecutionStore(pool)
	}

	// --- S3 report archival ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		writer := s3blob.NewWriter(s3Client)
		deps.Reports = s3blob.NewReader(s3Client)

		// Archival reads from the journals, so it needs Postgres too.
		if deps.OppStore != nil && deps.ExecStore != nil {
			deps.Archiver = s3blob.NewArchiver(writer, deps.Reports,
				deps.OppStore, deps.ExecStore, logger)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}
