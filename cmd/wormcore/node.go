package wormcore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wormhole-foundation/wormhole/core/pkg/core"
	"github.com/wormhole-foundation/wormhole/core/pkg/db"
	"github.com/wormhole-foundation/wormhole/core/pkg/notify"
	"github.com/wormhole-foundation/wormhole/core/pkg/publicweb"
	"github.com/wormhole-foundation/wormhole/core/pkg/readiness"
	"github.com/wormhole-foundation/wormhole/core/pkg/tokenbridge"
	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
	"github.com/wormhole-foundation/wormhole/core/pkg/version"
)

var (
	storeBackend *string
	dataDir      *string
	postgresURL  *string

	kafkaBrokers *string
	kafkaTopic   *string

	publicWeb  *string
	statusAddr *string
	rateLimit  *float64
	rateBurst  *int
)

var (
	genesisFlags = genesisFlagSet()
	loggingFlags = logFlagSet()
)

func init() {
	storeBackend = NodeCmd.Flags().String("store", "memory", "State store backend (memory, badger, postgres)")
	dataDir = NodeCmd.Flags().String("dataDir", "", "Data directory of the badger store")
	postgresURL = NodeCmd.Flags().String("postgresURL", "", "Postgres connection URL of the postgres store")

	kafkaBrokers = NodeCmd.Flags().String("kafkaBrokers", "", "Kafka brokers to publish bridge events to (comma-separated, disabled if blank)")
	kafkaTopic = NodeCmd.Flags().String("kafkaTopic", "wormcore-events", "Kafka topic for bridge events")

	publicWeb = NodeCmd.Flags().String("publicWeb", "[::]:7071", "Listen address for the public REST interface (sd:<addr> for a systemd socket)")
	statusAddr = NodeCmd.Flags().String("statusAddr", "[::]:6060", "Listen address for status server (disabled if blank)")
	rateLimit = NodeCmd.Flags().Float64("rateLimit", 100, "Maximum REST requests per second (0 for unlimited)")
	rateBurst = NodeCmd.Flags().Int("rateBurst", 200, "Maximum REST request burst")

	NodeCmd.Flags().AddFlagSet(genesisFlags)
	NodeCmd.Flags().AddFlagSet(loggingFlags)
}

// NodeCmd represents the node command
var NodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run the wormcore node",
	Run:   runNode,
}

func openStore(ctx context.Context, logger *zap.Logger) (db.Store, error) {
	switch *storeBackend {
	case "memory":
		logger.Warn("using in-memory store, state is lost on exit")
		return db.NewMemoryStore(), nil
	case "badger":
		if *dataDir == "" {
			return nil, errors.New("please specify --dataDir")
		}
		path := filepath.Join(*dataDir, "db")
		if err := os.MkdirAll(path, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		return db.OpenBadger(path)
	case "postgres":
		if *postgresURL == "" {
			return nil, errors.New("please specify --postgresURL")
		}
		return db.OpenPostgres(ctx, *postgresURL, db.WithPostgresLogger(logger))
	default:
		return nil, fmt.Errorf("unknown store backend %q", *storeBackend)
	}
}

func newNotifier(logger *zap.Logger) (notify.Notifier, func(), error) {
	notifiers := notify.Multi{notify.NewLogNotifier(logger)}
	if *kafkaBrokers == "" {
		return notifiers, func() {}, nil
	}

	k, err := notify.NewKafkaNotifier(strings.Split(*kafkaBrokers, ","), *kafkaTopic, notify.NewKafkaConfig("wormcore"), logger)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := k.Close(); err != nil {
			logger.Error("failed to close kafka producer", zap.Error(err))
		}
	}
	return append(notifiers, k), closer, nil
}

func runNode(cmd *cobra.Command, args []string) {
	if err := applyConfig(cmd.Flags()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	logger, err := newLogger(configuredLogConfig())
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting wormcore node", zap.String("version", version.Version()))

	rootCtx, rootCtxCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCtxCancel()

	// Register components for readiness checks.
	ready := readiness.NewRegistry()
	for _, c := range []readiness.Component{readiness.ComponentStore, readiness.ComponentGenesis, readiness.ComponentPublicWeb} {
		if err := ready.RegisterComponent(c); err != nil {
			logger.Fatal("failed to register readiness component", zap.Error(err))
		}
	}

	if *statusAddr != "" {
		go func() {
			logger.Info("status server listening", zap.String("addr", *statusAddr))
			logger.Error("status server crashed", zap.Error(publicweb.NewHTTPServer(*statusAddr, publicweb.NewStatusRouter(ready)).ListenAndServe()))
		}()
	}

	g, err := loadGenesis()
	if err != nil {
		logger.Fatal("failed to load genesis", zap.Error(err))
	}
	scheme, err := digestScheme()
	if err != nil {
		logger.Fatal("invalid digest scheme", zap.Error(err))
	}

	store, err := openStore(rootCtx, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("backend", *storeBackend), zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close store", zap.Error(err))
		}
	}()
	ready.SetReady(readiness.ComponentStore)

	notifier, closeNotifier, err := newNotifier(logger)
	if err != nil {
		logger.Fatal("failed to set up event notifier", zap.Error(err))
	}
	defer closeNotifier()

	bridge := core.NewBridge(store, g.Config(scheme), core.WithLogger(logger), core.WithNotifier(notifier))
	if _, err := bridge.Initialize(rootCtx, g.Guardians); err != nil {
		if !errors.Is(err, vaa.ErrAlreadyInitialized) {
			logger.Fatal("failed to initialize bridge", zap.Error(err))
		}
		logger.Info("store already initialized, ignoring genesis guardian set")
	}
	ready.SetReady(readiness.ComponentGenesis)

	limit := rate.Inf
	if *rateLimit > 0 {
		limit = rate.Limit(*rateLimit)
	}
	srv := publicweb.NewServer(bridge, logger,
		publicweb.WithTokenBridge(tokenbridge.NewBridge(bridge, logger, notifier)),
		publicweb.WithRateLimit(limit, *rateBurst),
	)
	httpSrv := publicweb.NewHTTPServer(*publicWeb, srv.Handler())
	listener, err := publicweb.Listen(logger, *publicWeb)
	if err != nil {
		logger.Fatal("failed to listen for public web", zap.Error(err))
	}

	errC := make(chan error, 1)
	go func() {
		logger.Info("public web listening", zap.String("addr", listener.Addr().String()))
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
	}()
	ready.SetReady(readiness.ComponentPublicWeb)

	select {
	case <-rootCtx.Done():
		logger.Info("received shutdown signal")
	case err := <-errC:
		logger.Error("public web crashed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down public web", zap.Error(err))
	}
}
