package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/nertexqq/giftwatch/internal/authtoken"
	"github.com/nertexqq/giftwatch/internal/config"
	"github.com/nertexqq/giftwatch/internal/dispatch"
	"github.com/nertexqq/giftwatch/internal/enrich"
	"github.com/nertexqq/giftwatch/internal/httpapi"
	"github.com/nertexqq/giftwatch/internal/imagecache"
	"github.com/nertexqq/giftwatch/internal/marketplace"
	"github.com/nertexqq/giftwatch/internal/obslog"
	"github.com/nertexqq/giftwatch/internal/poller"
	"github.com/nertexqq/giftwatch/internal/ratelimit"
	"github.com/nertexqq/giftwatch/internal/seenset"
	"github.com/nertexqq/giftwatch/internal/supervisor"
	"github.com/nertexqq/giftwatch/internal/telegram"
	"github.com/nertexqq/giftwatch/internal/userconfig"
	"github.com/nertexqq/giftwatch/internal/wshub"
)

const filterVersionPollInterval = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatalf("failed to load config: %v", err)
	}

	log, err := obslog.New(cfg.Dev)
	if err != nil {
		fatalf("failed to init logger: %v", err)
	}
	defer log.Sync()

	if cfg.MySQLDSN == "" {
		log.Error("MYSQL_DSN is required, example: user:password@tcp(127.0.0.1:3306)/giftwatch?parseTime=true&charset=utf8mb4")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		fatalf("failed to open mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		fatalf("failed to ping mysql: %v", err)
	}
	log.Info("connected to mysql")

	users := userconfig.NewStore(db)
	if err := users.InitSchema(ctx); err != nil {
		fatalf("failed to init user-config schema: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			fatalf("failed to ping redis: %v", err)
		}
		log.Info("connected to redis", "addr", cfg.RedisAddr)
	}

	tonnelFeeRate, err := decimal.NewFromString(cfg.Tunable.TonnelFeeRate())
	if err != nil {
		log.Warn("invalid tonnel fee rate, defaulting to 0.06", "value", cfg.Tunable.TonnelFeeRate())
		tonnelFeeRate = decimal.NewFromFloat(0.06)
	}

	var tonnelGate marketplace.RateGate
	if redisClient != nil {
		tonnelGate = ratelimit.NewTonnelGate(redisClient, ratelimit.DefaultInterval)
	} else {
		log.Warn("redis not configured; falling back to a process-local Tonnel rate gate")
		tonnelGate = ratelimit.NewLocalTonnelGate(ratelimit.DefaultInterval)
	}

	tokens := authtoken.NewStaticProvider(map[marketplace.Name]string{
		marketplace.Portals: cfg.PortalsToken,
		marketplace.Tonnel:  cfg.TonnelAuth,
		marketplace.MRKT:    cfg.MrktToken,
	}, log)

	adapters := map[marketplace.Name]marketplace.Adapter{
		marketplace.Portals: marketplace.NewPortalsAdapter(tokens),
		marketplace.Tonnel:  marketplace.NewTonnelAdapter(tonnelGate, tonnelFeeRate),
		marketplace.MRKT:    marketplace.NewMrktAdapter(tokens),
		marketplace.GetGems: marketplace.NewGetgemsAdapter(cfg.GetgemsAPIKey),
	}

	cache := enrich.NewFloorCache(cfg.Tunable.FloorCacheTTL())
	enricher := enrich.NewEnricher(adapters, cache)

	var mirror dispatch.ImageMirror
	if cfg.PinataAPIKey != "" {
		mirror = imagecache.NewPinataMirror(cfg.PinataAPIURL, cfg.PinataGatewayURL, cfg.PinataAPIKey, cfg.PinataSecretAPIKey)
	}

	hub := wshub.NewHub()
	router := httpapi.New(200, cache, hub, log)

	if cfg.TelegramBotToken == "" {
		log.Warn("TELEGRAM_BOT_TOKEN not set; Telegram delivery is disabled, only the WebSocket feed will fire")
	}
	sender := telegram.NewSender(cfg.TelegramBotToken)
	dispatcher := dispatch.New(sender, recordingBroadcaster{hub: hub, ledger: router.Ledger()}, mirror, log, cfg.Tunable.DispatchWorkerPoolSize())

	baseline := &seenset.BaselineFlag{}
	sv := supervisor.New(baseline, users, log)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// requiredTokens names the marketplaces whose adapter needs a
	// configured auth token to do anything useful; per spec §7, a
	// marketplace missing one is a PermanentError and its Poller never
	// starts, rather than looping on AuthError forever.
	requiredTokens := map[marketplace.Name]string{
		marketplace.Portals: cfg.PortalsToken,
		marketplace.MRKT:    cfg.MrktToken,
	}

	for mp, adapter := range adapters {
		if tok, needsToken := requiredTokens[mp]; needsToken && tok == "" {
			log.Error("no auth token configured; poller will not start", "marketplace", mp)
			continue
		}
		seen := seenset.New(seenset.DefaultCap)
		p := poller.New(poller.Config{
			Name:       mp,
			Adapter:    adapter,
			Tokens:     tokens,
			Seen:       seen,
			Baseline:   baseline,
			RuleSource: users,
			Enricher:   enricher,
			Dispatcher: dispatcher,
			Interval:   cfg.Tunable.PollInterval(string(mp)),
			Log:        log,
			OnSweep:    sv.OnSweep,
		})
		sv.Enable(runCtx, mp, p, seen)
	}
	go sv.WatchFilterChanges(runCtx, filterVersionPollInterval)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router.Handler()}
	go func() {
		log.Info("starting http server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "error", err)
		}
	}()

	<-runCtx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", "error", err)
	}
}

// recordingBroadcaster wraps the WebSocket hub so every broadcast event
// is also appended to the operational ledger the httpapi /recent
// endpoint reads from.
type recordingBroadcaster struct {
	hub    *wshub.Hub
	ledger *httpapi.Ledger
}

func (b recordingBroadcaster) Broadcast(event string, payload any) {
	if e, ok := payload.(dispatch.NewGiftEvent); ok {
		b.ledger.Record(e)
	}
	b.hub.Broadcast(event, payload)
}

func fatalf(format string, args ...any) {
	log.Printf(format, args...)
	os.Exit(1)
}
