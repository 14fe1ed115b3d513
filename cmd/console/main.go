package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/gov-console/console"
	"github.com/jrsteele09/gov-console/internal/config"
	"github.com/jrsteele09/gov-console/internal/logging"
	"github.com/jrsteele09/gov-console/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

const usage = `usage: console <command> [flags]

commands:
  login    [-user id] [-from location]   sign in
  logout                                 sign out
  status                                 show the current session
  open     <path>                        show what opening a console page does
  pending                                list companies awaiting approval
  watch    [-metrics addr]               follow sign-ins made by other consoles
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	c, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(os.Stderr, c.GetLogLevel(), c.GetEnv())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := console.New(c)
	if err != nil {
		return err
	}
	defer app.Close()

	switch command {
	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		userID := fs.String("user", "", "government user ID")
		from := fs.String("from", "", "sign-in location that redirected here")
		_ = fs.Parse(args)

		displayAppname(c.GetAppName())
		id, password, err := promptCredentials(*userID)
		if err != nil {
			return err
		}
		return app.Login(ctx, os.Stdout, id, password, *from)

	case "logout":
		return app.Logout(ctx, os.Stdout)

	case "status":
		app.Status(os.Stdout)
		return nil

	case "open":
		if len(args) != 1 {
			return errors.New("open needs exactly one path")
		}
		app.Open(os.Stdout, args[0])
		return nil

	case "pending":
		_, err := app.Pending(ctx, os.Stdout)
		return err

	case "watch":
		fs := flag.NewFlagSet("watch", flag.ExitOnError)
		metricsAddr := fs.String("metrics", "", "serve Prometheus metrics on this address")
		_ = fs.Parse(args)

		if *metricsAddr != "" {
			go serveMetrics(ctx, app, *metricsAddr)
		}
		app.Status(os.Stdout)
		return app.Watch(ctx, os.Stdout)

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func promptCredentials(userID string) (string, string, error) {
	stdin := bufio.NewReader(os.Stdin)
	if userID == "" {
		fmt.Print("User ID: ")
		line, err := stdin.ReadString('\n')
		if err != nil {
			return "", "", fmt.Errorf("failed to read user ID: %w", err)
		}
		userID = strings.TrimSpace(line)
	}

	fmt.Print("Password: ")
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		line, err := stdin.ReadString('\n')
		if err != nil && line == "" {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		return userID, strings.TrimRight(line, "\r\n"), nil
	}
	passBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println() // newline after hidden input
	if err != nil {
		return "", "", fmt.Errorf("failed to read password: %w", err)
	}
	return userID, string(passBytes), nil
}

func serveMetrics(ctx context.Context, app *console.App, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(app.Registry))
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("Serving metrics")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Err(err).Msg("Metrics server failed")
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
