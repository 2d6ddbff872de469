package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/script-core/internal/actor"
	"github.com/annel0/script-core/internal/api"
	"github.com/annel0/script-core/internal/auth"
	"github.com/annel0/script-core/internal/config"
	"github.com/annel0/script-core/internal/dispatcher"
	"github.com/annel0/script-core/internal/host"
	"github.com/annel0/script-core/internal/logging"
	"github.com/annel0/script-core/internal/observability"
	"github.com/annel0/script-core/internal/samples"
	"github.com/annel0/script-core/internal/snapshot"
	"github.com/annel0/script-core/internal/world"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config (or SCRIPTCORE_CONFIG)")
		issueToken = flag.String("issue-token", "", "Print an operator JWT for the given name and exit")
		admin      = flag.Bool("admin", false, "Issued token carries admin rights")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	if *issueToken != "" {
		signer, err := auth.NewSigner(cfg.API.GetJWTSecret(), 0)
		if err != nil {
			log.Fatalf("❌ Нельзя выдать токен: %v", err)
		}
		token, err := signer.Generate(*issueToken, *admin)
		if err != nil {
			log.Fatalf("❌ Ошибка подписи токена: %v", err)
		}
		fmt.Println(token)
		return
	}

	// Инициализируем систему логирования
	level := logging.ParseLevel(cfg.Logging.Level)
	if cfg.Logging.File {
		if err := logging.InitDefaultLogger("scriptcore"); err != nil {
			log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
		}
		defer logging.CloseDefaultLogger()
	}
	logging.GetLoggerManager().Configure(cfg.Logging.File, level)
	defer logging.GetLoggerManager().CloseAll()

	region := cfg.Snapshot.Region
	logging.Info("🎮 Запуск ядра скриптов региона %s", region)

	if err := run(cfg, region); err != nil {
		logging.Error("❌ %v", err)
		if errors.Is(err, dispatcher.ErrShutdownTimeout) {
			os.Exit(2)
		}
		os.Exit(1)
	}
	logging.Info("👋 Ядро успешно остановлено")
}

func run(cfg *config.Config, region string) error {
	ctx := context.Background()

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry, region)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logging.Warn("Ошибка остановки телеметрии: %v", err)
		}
	}()

	// === Классы акторов ===
	classes := actor.NewRegistry()
	if err := samples.Register(classes); err != nil {
		return fmt.Errorf("register classes: %w", err)
	}
	logging.Info("📚 Классы акторов: %v", classes.Classes())

	// === Хост ===
	var (
		h      host.Host
		bridge *host.NATSBridge
		memory *host.Memory
	)
	if url := cfg.NATS.GetURL(); url != "" {
		bridge, err = host.ConnectNATS(url, cfg.NATS.Prefix, 0)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer bridge.Close()
		h = bridge
	} else {
		memory = host.NewMemory()
		h = memory
		logging.Warn("⚠️  NATS не настроен, используется хост в памяти")
	}

	w := world.New(h, classes)
	if memory != nil {
		memory.Attach(w)
	}

	// === Снимки ===
	store, err := openStore(ctx, cfg.Snapshot)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		snap, err := snapshot.Load(ctx, store, region)
		switch {
		case errors.Is(err, snapshot.ErrNotFound):
			logging.Info("📦 Снимка региона %s нет, старт с пустого мира", region)
		case err != nil:
			return fmt.Errorf("load snapshot: %w", err)
		default:
			if err := snapshot.Restore(w, snap); err != nil {
				logging.Warn("Снимок восстановлен частично: %v", err)
			}
		}
	}

	// === Диспетчер ===
	d := dispatcher.New(w, dispatcher.Options{
		TickRate: cfg.Dispatcher.TickRate(),
		Metrics:  dispatcher.NewMetrics(prometheus.DefaultRegisterer),
	})

	// Входящие события хоста принимаются только после создания диспетчера
	if bridge != nil {
		if err := bridge.Serve(w); err != nil {
			return fmt.Errorf("nats serve: %w", err)
		}
	}

	// === REST API ===
	var signer *auth.Signer
	if secret := cfg.API.GetJWTSecret(); secret != "" {
		if signer, err = auth.NewSigner(secret, 0); err != nil {
			return err
		}
	}
	apiServer := api.NewServer(api.Config{
		Addr:            cfg.API.GetAddr(),
		World:           w,
		Loop:            d,
		Region:          region,
		Snapshots:       store,
		Signer:          signer,
		WebhookSecret:   cfg.API.GetWebhookSecret(),
		MetricsEndpoint: cfg.API.Metrics,
	})
	if err := apiServer.Start(); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	loopDone := make(chan error, 1)
	go func() { loopDone <- d.Run(loopCtx) }()

	logging.Info("✅ Все сервисы запущены: API %s, %v на тик", cfg.API.GetAddr(), d.Period())

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info("📡 Получен сигнал %v, завершение работы...", sig)
	case err := <-loopDone:
		logging.Warn("Цикл диспетчера завершился сам: %v", err)
	}

	// === GRACEFUL SHUTDOWN ===
	// Снимок до прохода завершения: после него акторов уже нет
	if store != nil {
		if _, err := snapshot.Save(ctx, store, w, region); err != nil {
			logging.Error("❌ Не удалось сохранить снимок: %v", err)
		}
	}

	apiCtx, apiCancel := context.WithTimeout(ctx, 5*time.Second)
	defer apiCancel()
	if err := apiServer.Shutdown(apiCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}

	return d.Stop(cfg.Dispatcher.ShutdownWait())
}

// openStore открывает хранилище снимков по настройкам; backend none даёт nil
func openStore(ctx context.Context, cfg config.SnapshotConfig) (snapshot.Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "badger":
		store, err := snapshot.NewBadgerStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		logging.Info("💾 Снимки в BadgerDB (%s)", cfg.Path)
		return store, nil
	case "redis":
		rc := snapshot.DefaultRedisConfig()
		if cfg.RedisAddr != "" {
			rc.Addr = cfg.RedisAddr
		}
		if cfg.KeyPrefix != "" {
			rc.KeyPrefix = cfg.KeyPrefix
		}
		store, err := snapshot.NewRedisStore(ctx, rc)
		if err != nil {
			return nil, err
		}
		logging.Info("💾 Снимки в Redis (%s)", rc.Addr)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Backend)
	}
}
