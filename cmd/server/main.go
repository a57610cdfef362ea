package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"tpahub/internal/persistence/indexdb"
	persistlog "tpahub/internal/persistence/log"
	"tpahub/internal/sim/hub"
	"tpahub/internal/sim/tuning"
	"tpahub/internal/transport/ws"
)

type multiRecorder []hub.AuditRecorder

func (m multiRecorder) Record(e hub.AuditEntry) {
	for _, r := range m {
		r.Record(e)
	}
}

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite request index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(strings.TrimSpace(*tuningPath))
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	_ = os.MkdirAll(*dataDir, 0o755)

	// Audit sinks: compressed JSONL always, sqlite index unless disabled.
	reqLog := persistlog.NewRequestLogger(*dataDir)
	defer reqLog.Close()
	recorders := multiRecorder{reqLog}
	if !*disableDB {
		idx, err := indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open request index: %v", err)
		}
		defer idx.Close()
		recorders = append(recorders, idx)
	}

	h := hub.New(hub.Config{
		TickRateHz:         tune.TickRateHz,
		RequestExpiryTicks: tune.RequestExpiryTicks,
		RateLimits:         tune.RateLimits,
	}, logger, recorders)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- h.Run(ctx) }()

	wsSrv := ws.NewServer(h, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})

	httpSrv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Printf("listening on %s (tick_rate=%dHz request_expiry=%d ticks)", *addr, tune.TickRateHz, tune.RequestExpiryTicks)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("http: %v", err)
	}
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("hub: %v", err)
	}
	logger.Printf("bye")
}
