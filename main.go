package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"jircord/global"
	"jircord/global/config"
	"jircord/logger"
	mid "jircord/middleware"
	"jircord/module/user"
	usersvc "jircord/module/user/service"
	"jircord/service/chat"
	"jircord/service/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	path := flag.String("config", os.Getenv("JIRCORD_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		logger.Error("[boot] load config", zap.Error(err))
		os.Exit(1)
	}
	if err := global.ConfigLogger(cfg.Log); err != nil {
		logger.Error("[boot] logger", zap.Error(err))
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("[boot] exit", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	global.ConfigIds(cfg.NodeID)

	backends, err := global.ConfigStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := backends.Close(context.Background()); err != nil {
			logger.Warn("[boot] close store", zap.Error(err))
		}
	}()

	dir, err := global.ConfigDirectory(ctx, backends)
	if err != nil {
		return err
	}
	sink, closeSink, err := global.ConfigPublisher(cfg.Publish)
	if err != nil {
		return err
	}
	defer func() { _ = closeSink() }()

	jwtOpts := global.ConfigJWT(cfg.JWT)
	users := usersvc.NewService(global.ConfigAccounts(cfg.Accounts), dir, jwtOpts)
	mid.Config(users)

	seq := storage.NewSequencer(cfg.Relay.StoreShards, cfg.Relay.StoreQueue)
	defer seq.Close()

	router := chat.NewRouter(chat.Options{
		Log:          backends.Log,
		Sequencer:    seq,
		Roster:       dir,
		Sink:         sink,
		Mirror:       global.ConfigPresenceMirror(backends, cfg.Store, cfg.NodeID),
		Metrics:      chat.NewMetrics(nil),
		EventQueue:   cfg.Relay.EventQueue,
		SendQueue:    cfg.Relay.SendQueue,
		StoreTimeout: cfg.Relay.StoreTimeout,
	})
	ws := chat.NewServer(chat.ServerOptions{
		Router:   router,
		Verifier: chat.NewJWTVerifier(jwtOpts),
		Liveness: chat.Liveness{
			PingInterval:  cfg.Relay.PingInterval,
			PongWait:      cfg.Relay.PongWait,
			WriteWait:     cfg.Relay.WriteWait,
			MaxFrameBytes: cfg.Relay.MaxFrameBytes,
		},
		AuthTimeout: cfg.Relay.AuthTimeout,
		CheckOrigin: mid.OriginAllowed(cfg.HTTP.AllowedOrigins),
	})

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(mid.Recovery(), mid.AccessLog(), mid.CORS(cfg.HTTP.AllowedOrigins), mid.Manager().Use())
	user.NewHandler(users).Register(r)
	r.GET("/ws", ws.HandleWS)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: r}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return router.Run(gctx) })
	g.Go(func() error {
		logger.Info("[HTTP] listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	if cfg.GRPC.Addr != "" {
		gs := grpc.NewServer()
		hs := health.NewServer()
		healthpb.RegisterHealthServer(gs, hs)
		hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		hs.SetServingStatus("jircord.Relay", healthpb.HealthCheckResponse_SERVING)

		g.Go(func() error {
			lis, err := net.Listen("tcp", cfg.GRPC.Addr)
			if err != nil {
				return err
			}
			logger.Info("[gRPC] health listening", zap.String("addr", cfg.GRPC.Addr))
			return gs.Serve(lis)
		})
		g.Go(func() error {
			<-gctx.Done()
			hs.Shutdown()
			gs.GracefulStop()
			return nil
		})
	}

	logger.Info("[boot] jircord relay up",
		zap.String("node", strconv.FormatInt(cfg.NodeID, 10)),
		zap.String("store", cfg.Store.Driver),
		zap.String("publish", cfg.Publish.Driver))
	return g.Wait()
}
