package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/clubhive/chat-service/internal/api"
	"github.com/clubhive/chat-service/internal/chat"
	"github.com/clubhive/chat-service/internal/config"
	"github.com/clubhive/chat-service/internal/database"
	"github.com/clubhive/chat-service/internal/presence"
	"github.com/clubhive/chat-service/internal/server"
	"github.com/clubhive/chat-service/internal/stats"
)

const defaultSigningKey = "c2pRK3ZtYnE0Z2hwdXcxOXhkNGU3dGYyYXo4bGNubXk="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	redisAddr      string
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.StringVar(&redisAddr, "redis-addr", "", "redis address for broadcast mirroring (optional)")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[chat-service] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins, redisAddr)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgChatRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("migrate:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	registry := presence.NewRegistry()
	broadcaster := server.NewBroadcaster(logger, statsUpdater, rdb)
	dispatcher := chat.NewMessageDispatcher(dbConn, registry, broadcaster, logger)

	roomService, err := chat.NewRoomService(dbConn, registry, broadcaster, dispatcher, logger)
	if err != nil {
		logger.Fatal("new room service:", err)
	}

	chatServer := server.NewChatServer(logger, roomService, dispatcher, broadcaster, statsUpdater)

	srv := api.NewChatApp(mux, logger, roomService, dispatcher, chatServer, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("chat server shutdown:", err)
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Println("redis close:", err)
		}
	}

	logger.Println("shutdown complete")
}
