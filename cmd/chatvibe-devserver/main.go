// Command chatvibe-devserver runs an in-memory ChatVibe backend for local
// development of the console.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chatvibe/console/internal/devserver"
	"github.com/chatvibe/console/internal/interfaces"
	"github.com/chatvibe/console/internal/logging"
)

func main() {
	addr := flag.String("addr", ":8000", "Listen address")
	credentials := flag.String("credentials", interfaces.CredentialsCookie, "Credential mode: bearer or cookie")
	accessTTL := flag.Duration("access-ttl", 5*time.Minute, "Access token lifetime")
	refreshTTL := flag.Duration("refresh-ttl", 24*time.Hour, "Refresh token lifetime")
	secret := flag.String("secret", "", "Token signing secret (random when empty)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *credentials != interfaces.CredentialsBearer && *credentials != interfaces.CredentialsCookie {
		fmt.Fprintf(os.Stderr, "credentials must be %q or %q\n", interfaces.CredentialsBearer, interfaces.CredentialsCookie)
		os.Exit(2)
	}

	logConfig := logging.Config{Level: logging.InfoLevel, Format: "text", Output: "stderr", Component: "devserver"}
	if *debug {
		logConfig.Level = logging.DebugLevel
	}
	if err := logging.InitGlobalLogger(logConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	logger := logging.GetDevServerLogger()

	backend := devserver.New(devserver.Options{
		CredentialMode: *credentials,
		AccessTTL:      *accessTTL,
		RefreshTTL:     *refreshTTL,
		Secret:         []byte(*secret),
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           backend,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", "error", err.Error())
		}
	}()

	fmt.Printf("ChatVibe dev server listening on %s (%s credentials)\n", *addr, *credentials)
	fmt.Println("Endpoints:")
	fmt.Println("  GET    /api/health/")
	fmt.Println("  POST   /api/token/  /api/token/refresh/  /api/register/")
	fmt.Println("  GET    /api/servers  /api/messages")
	fmt.Println("  POST   /api/servers/membership/{server}/membership/")
	fmt.Println("  WS     /ws/{server}/{channel}/")
	fmt.Printf("Demo account: %s / %s\n\n", devserver.DemoEmail, devserver.DemoPassword)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
