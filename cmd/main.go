package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"leadgame/internal/config"
	"leadgame/internal/handlers"
	"leadgame/internal/mailer"
	"leadgame/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	defer initLogging(os.Stdout, cfg.LogVerbose).Close()
	gin.SetMode(cfg.Server.GinMode)

	// 1. Bot verification. The endpoint always talks to the provider; the
	// submission pipeline can be pointed back at the endpoint instead.
	recaptcha, err := services.NewRecaptchaVerifier(cfg.Captcha.SecretKey, cfg.Captcha.VerifyURL, cfg.OutboundTimeout)
	if err != nil {
		logger.Fatalf("Failed to create bot verifier: %v", err)
	}
	var pipelineVerifier services.BotVerifier = recaptcha
	if cfg.Captcha.ViaService {
		pipelineVerifier = services.NewServiceVerifier(cfg.Server.BaseURL, cfg.OutboundTimeout)
	}

	// 2. Outbound mail, only when credentials are present.
	var notifier services.Notifier
	if cfg.Mail.Enabled() {
		sender, err := mailer.NewSMTPSender(cfg.Mail, cfg.OutboundTimeout)
		if err != nil {
			logger.Fatalf("Failed to create mail sender: %v", err)
		}
		n, err := mailer.NewNotifier(sender, cfg.Mail)
		if err != nil {
			logger.Fatalf("Failed to create notifier: %v", err)
		}
		notifier = n
	} else {
		logger.Warning("SMTP credentials missing; game-completion emails are disabled.")
	}

	// Verify, then two sends, each bounded by the outbound timeout.
	submissions := services.NewSubmissionService(pipelineVerifier, notifier, 3*cfg.OutboundTimeout)

	// 3. Deliverability
	disposable := cfg.Deliverability.ExtraDisposableDomains
	if cfg.Deliverability.DomainsFile != "" {
		domains, err := services.LoadDomainListFile(cfg.Deliverability.DomainsFile)
		if err != nil {
			logger.Fatalf("Failed to load disposable domains: %v", err)
		}
		logger.Infof("Loaded %d disposable domains from %s", len(domains), cfg.Deliverability.DomainsFile)
		disposable = append(disposable, domains...)
	}
	emailCheck := services.NewEmailCheckService(
		net.DefaultResolver,
		cfg.Deliverability.Strict,
		cfg.OutboundTimeout,
		disposable...,
	)

	// 4. HTTP
	httpHandler := handlers.NewHTTPHandler(submissions, recaptcha, emailCheck, services.NewGameService())
	server := &http.Server{
		Handler:           handlers.NewRouter(httpHandler, cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		logger.Fatalf("Failed to listen: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("Server starting on http://localhost:%d", cfg.Server.Port)
	if err := serve(ctx, server, ln, submissions.Wait); err != nil {
		logger.Fatalf("Failed to run server: %v", err)
	}
	logger.Info("Server stopped")
}

// initLogging sends every level to w; errors also go to stderr. verbose
// enables the V(1) detail lines.
func initLogging(w io.Writer, verbose bool) *logger.Logger {
	l := logger.Init("leadgame", false, false, w)
	if verbose {
		l.SetLevel(1)
	}
	return l
}

// serve runs srv on ln until ctx is done. It then waits for in-flight
// requests to finish before calling drain, so every accepted submission has
// queued its mail by the time drain runs.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, drain func()) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Server shutdown: %v", err)
		}
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	// Serve returns as soon as Shutdown starts; wait for it to finish.
	<-done
	drain()
	return nil
}
