package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/palemoky/threadrook/internal/bus"
	"github.com/palemoky/threadrook/internal/config"
	"github.com/palemoky/threadrook/internal/logger"
	"github.com/palemoky/threadrook/internal/match"
	"github.com/palemoky/threadrook/internal/oracle/chessrules"
	"github.com/palemoky/threadrook/internal/server"
	"github.com/palemoky/threadrook/internal/telemetry"
)

const serviceName = "threadrook"

func main() {
	if err := run(); err != nil {
		log.Printf("❌ %v", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, logDir string
	flagSet := pflag.NewFlagSet(serviceName, pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "configs/config.yaml", "配置文件路径")
	flagSet.StringVar(&logDir, "log-dir", "", "日志目录（覆盖配置文件）")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if logDir != "" {
		cfg.Log.Dir = logDir
	}

	if err := logger.Init(cfg.Log.Dir); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.Telemetry.Endpoint)
	if err != nil {
		return fmt.Errorf("初始化链路追踪失败: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			log.Printf("⚠️ 关闭链路追踪失败: %v", err)
		}
	}()

	b, closeBus, err := newBus(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBus()

	settings := match.Settings{
		JoinDeadline: cfg.Match.JoinDeadline,
		ClockTicks:   cfg.Match.ClockTicks,
		TickInterval: cfg.Match.TickIntervalDuration(),
		GracePeriod:  cfg.Match.GracePeriodDuration(),
		QueryTimeout: cfg.Match.QueryTimeoutDuration(),
	}
	launcher := match.NewLauncher(b, chessrules.New(), settings)
	srv := server.NewServer(cfg, b, launcher)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("正在关闭网关...")
		srv.GracefulShutdown(cfg.Server.ShutdownWaitDuration())
		return nil
	})

	log.Println("♟️ threadrook 启动中...")
	return g.Wait()
}

// loadConfig 配置文件不存在时使用默认配置，环境变量仍然生效
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("加载配置文件失败: %w", err)
	}

	log.Printf("配置文件 %s 不存在，使用默认配置", path)
	cfg = config.Default()
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newBus 创建进程级总线：启用 Redis 时跨进程广播，否则只在进程内
func newBus(ctx context.Context, cfg *config.Config) (bus.Bus, func(), error) {
	if !cfg.Redis.Enabled {
		log.Printf("🚌 使用进程内总线 (积压上限 %d)", cfg.Bus.Backlog)
		return bus.NewMemory(cfg.Bus.Backlog), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("连接 redis %s 失败: %w", cfg.Redis.Addr, err)
	}

	r := bus.NewRedis(client, bus.RedisOptions{
		Channel:  cfg.Redis.Channel,
		Backlog:  cfg.Bus.Backlog,
		ReplyTTL: cfg.Match.QueryTimeoutDuration(),
	})
	// 总线比网关活得更久：关闭时仍需把对局的收尾命令送达
	busCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := r.Start(busCtx); err != nil {
		cancel()
		_ = client.Close()
		return nil, nil, err
	}
	return r, func() {
		cancel()
		<-r.Done()
		_ = client.Close()
	}, nil
}
