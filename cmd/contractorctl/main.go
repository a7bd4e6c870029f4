package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-contractor-session/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: contractorctl <command> [flags]

commands:
  login            -email -password
  register         -email -password -name
  logout
  whoami
  projects
  cancel-deletion
  watch            [-metrics-addr :9090]  keep the session fresh until interrupted
  demo             run against in-process fakes`

var errUsage = errors.New("invalid usage")

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
		}
		log.Err(err).Msg("contractorctl failed")
		os.Exit(1)
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c)

	if len(args) == 0 {
		return errUsage
	}
	command, flags := args[0], flag.NewFlagSet(args[0], flag.ContinueOnError)
	email := flags.String("email", "", "account email")
	password := flags.String("password", "", "account password")
	name := flags.String("name", "", "display name")
	metricsAddr := flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	if err := flags.Parse(args[1:]); err != nil {
		return errUsage
	}

	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if command == "demo" {
		return runDemo(ctx, c)
	}

	// Signing in replaces whatever an earlier run persisted.
	signingIn := command == "login" || command == "register"
	a, err := newRemoteApp(ctx, c, !signingIn)
	if err != nil {
		return err
	}
	defer a.loop.Stop()

	switch command {
	case "login":
		return a.login(ctx, *email, *password)
	case "register":
		return a.register(ctx, *email, *password, *name)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "projects":
		return a.projects(ctx)
	case "cancel-deletion":
		return a.cancelDeletion(ctx)
	case "watch":
		return a.watch(ctx, *metricsAddr)
	default:
		return errUsage
	}
}

func setupLogging(c config.EnvConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// serveMetrics exposes the default registry until ctx is done.
func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Msg("Metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
