// Package todos parses todos service flags and launches the service.
package todos

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/todos/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/todos/internal/platform/grpc"
	server "github.com/louisbranch/todos/internal/services/todos/app"
)

const probeTimeout = 3 * time.Second

// Config holds todos command configuration.
type Config struct {
	HTTPAddr    string   `env:"HTTP_ADDR" envDefault:":8000"`
	Port        int      `env:"PORT" envDefault:"8092"`
	DBPath      string   `env:"DB_PATH" envDefault:"data/todos.db"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`

	// HealthCheck probes a running server instead of starting one.
	HealthCheck bool
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	origins := strings.Join(cfg.CORSOrigins, ",")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The todos HTTP API address")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The todos gRPC health server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The todos SQLite database path")
	fs.StringVar(&origins, "cors-origins", origins, "Comma separated browser origins allowed by CORS")
	fs.BoolVar(&cfg.HealthCheck, "healthcheck", false, "Probe the local gRPC health endpoint and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.CORSOrigins = splitOrigins(origins)
	return cfg, nil
}

// Run starts the todos HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	if cfg.HealthCheck {
		return Probe(ctx, fmt.Sprintf("127.0.0.1:%d", cfg.Port))
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceTodos, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			HTTPAddr:           cfg.HTTPAddr,
			GRPCAddr:           fmt.Sprintf(":%d", cfg.Port),
			DBPath:             cfg.DBPath,
			CORSAllowedOrigins: cfg.CORSOrigins,
		})
	})
}

// Probe waits, up to a short deadline, for the server at addr to report
// SERVING for the todo API.
func Probe(ctx context.Context, addr string) error {
	conn, err := platformgrpc.DialHealth(addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return platformgrpc.WaitForHealth(ctx, conn, server.HealthServiceName, log.Printf)
}

func splitOrigins(value string) []string {
	var origins []string
	for _, origin := range strings.Split(value, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
