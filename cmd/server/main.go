package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Luismorlan/pagemux/app_config"
	"github.com/Luismorlan/pagemux/engine"
	"github.com/Luismorlan/pagemux/engine/modules"
	"github.com/Luismorlan/pagemux/facebook"
	"github.com/Luismorlan/pagemux/metrics"
	"github.com/Luismorlan/pagemux/notification"
	"github.com/Luismorlan/pagemux/realtime"
	"github.com/Luismorlan/pagemux/reconciler"
	"github.com/Luismorlan/pagemux/server"
	"github.com/Luismorlan/pagemux/server/middlewares"
	"github.com/Luismorlan/pagemux/store"
	"github.com/Luismorlan/pagemux/store/cache"
	. "github.com/Luismorlan/pagemux/utils"
	"github.com/Luismorlan/pagemux/utils/dotenv"
	. "github.com/Luismorlan/pagemux/utils/flag"
	. "github.com/Luismorlan/pagemux/utils/log"
	"github.com/Luismorlan/pagemux/webhook"
	"github.com/go-redis/redis/v8"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
	ParseFlags()

	config, err := app_config.ParseConfig()
	if err != nil {
		Log.Fatalln(err)
	}
	if err := ConfigureLogger(LoggerOptions{
		Level:         config.LogLevel,
		Ship:          dotenv.IsProdEnv(),
		DatadogHost:   config.DatadogHost,
		DatadogAPIKey: config.DatadogAPIKey,
	}); err != nil {
		Log.Fatalln(err)
	}
	syncConfig, err := app_config.ParseSyncConfig(config.SyncConfigPath)
	if err != nil {
		Log.Fatalln(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := GetDBConnection(ctx, config)
	if err != nil {
		Log.Fatalln("fail to connect database: ", err)
	}
	if err := DatabaseSetupAndMigration(db); err != nil {
		Log.Fatalln(err)
	}

	reporter, err := metrics.New(config.StatsdAddr)
	if err != nil {
		Log.Fatalln("fail to create statsd client: ", err)
	}
	defer reporter.Close()

	s := store.New(db)
	client := facebook.NewClient(facebook.ClientConfig{
		BaseURL:   config.GraphBaseURL,
		AppID:     config.FacebookAppID,
		AppSecret: config.FacebookAppSecret,
		PageSize:  syncConfig.PULL_PAGE_SIZE,
	})
	switch *ServiceName {
	case CredentialRefresher:
		// One-shot run, meant for a cron job. The API server's bus is out of
		// reach, so rotated fanpages are dropped from the shared cache directly.
		redisClient := connectRedis(ctx, config)
		if redisClient != nil {
			defer redisClient.Close()
		}
		directory := cache.NewFanpageDirectory(redisClient, s, syncConfig.FanpageCacheTTL())
		report, err := newCredentialSweep(syncConfig, s, client, cache.Invalidator{Directory: directory}, reporter).Sweep(ctx)
		if err != nil {
			Log.Fatalln("credential sweep failed: ", err)
		}
		Log.Infof("credential sweep finished: %+v", report)
	default:
		runAPIServer(ctx, config, syncConfig, s, client, reporter)
	}
}

func newCredentialSweep(
	syncConfig app_config.SyncConfig,
	s *store.Store,
	client *facebook.Client,
	publisher modules.FanpagePublisher,
	reporter *metrics.Reporter,
) *modules.CredentialSweep {
	return modules.NewCredentialSweep(modules.CredentialSweepConfig{
		Name:         "credential_sweep",
		SweepHour:    syncConfig.SWEEP_HOUR,
		RefreshAfter: syncConfig.RefreshThreshold(),
	}, s, client, publisher, reporter)
}

// connectRedis returns nil when redis is not configured or unreachable, which
// leaves the fanpage directory uncached.
func connectRedis(ctx context.Context, config app_config.Config) *redis.Client {
	if !config.RedisEnabled() {
		return nil
	}
	client, err := GetRedisClient(ctx, config)
	if err != nil {
		Log.Warnln("redis unavailable, fanpage lookups run uncached: ", err)
		return nil
	}
	return client
}

func runAPIServer(
	ctx context.Context,
	config app_config.Config,
	syncConfig app_config.SyncConfig,
	s *store.Store,
	client *facebook.Client,
	reporter *metrics.Reporter,
) {
	redisClient := connectRedis(ctx, config)
	if redisClient != nil {
		defer redisClient.Close()
	}

	hub := realtime.NewHub(reporter)
	notifier := notification.NewService(s, hub, syncConfig, reporter)
	r := reconciler.New(s, client, notifier, hub, reporter)
	directory := cache.NewFanpageDirectory(redisClient, s, syncConfig.FanpageCacheTTL())

	bus := engine.NewEventBus()
	publisher := engine.NewFanpagePublisher(bus)
	dashboard := server.NewDashboard(s, client, r, notifier, hub, publisher)

	router := server.NewRouter(config, server.Routes{
		Dashboard: dashboard,
		Webhook:   webhook.NewHandler(directory, s, r, reporter),
		Socket:    realtime.NewSocketHandler(hub, middlewares.Authenticator(config.JWTSecret), dashboard, config.ClientURL),
	}, *ByPassAuth && *IsDevelopment)

	e := engine.NewEngine([]engine.Module{
		newCredentialSweep(syncConfig, s, client, publisher, reporter),
		modules.NewCacheInvalidator(modules.CacheInvalidatorConfig{Name: "cache_invalidator"}, directory, bus),
	}, ctx, bus)
	e.Start()

	srv := &http.Server{Addr: config.Address, Handler: router}
	go func() {
		Log.Infof("api server listening on %s", config.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			Log.Fatalln("api server stopped: ", err)
		}
	}()

	<-ctx.Done()
	Log.Infoln("api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		Log.Errorln("fail to shut down http server: ", err)
	}
	e.Shutdown()
}
