package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/mealforge/posgen/internal/commerce"
	"github.com/mealforge/posgen/internal/feed"
	"github.com/mealforge/posgen/internal/ledger"
	"github.com/mealforge/posgen/internal/metrics"
	"github.com/mealforge/posgen/internal/model"
	"github.com/mealforge/posgen/internal/pace"
	"github.com/mealforge/posgen/internal/runner"
	"github.com/mealforge/posgen/internal/synth"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var (
		dateStr      = flag.String("date", time.Now().Format(model.DateFormat), "business date to generate (YYYY-MM-DD)")
		count        = flag.Int("count", 0, "orders per merchant; 0 samples from the weekday volume range")
		multiplier   = flag.Float64("multiplier", 1.0, "scale factor applied to sampled volume")
		refundPct    = flag.Float64("refund-pct", 5, "percentage of settled orders to refund (0-100)")
		periodFlag   = flag.String("period", "", "restrict to one meal period (breakfast|lunch|happy_hour|dinner|late_night)")
		seed         = flag.Int64("seed", 0, "base RNG seed; 0 derives one from the clock")
		merchantsCSV = flag.String("merchants", "", "comma-separated merchant IDs (default: MERCHANT_ID env)")
		workers      = flag.Int("workers", 2, "concurrent merchant runs")
		timeout      = flag.Duration("merchant-timeout", 30*time.Minute, "deadline per merchant run; 0 disables")
		interval     = flag.Duration("pace", 0, "minimum interval between orders; 0 disables pacing")
		dryRun       = flag.Bool("dry-run", false, "use the in-process sandbox stub and in-memory ledger")
	)
	flag.Parse()

	date, err := time.Parse(model.DateFormat, *dateStr)
	if err != nil {
		slog.Error("invalid -date", "err", err)
		os.Exit(1)
	}
	if *refundPct < 0 || *refundPct > 100 {
		slog.Error("-refund-pct must be in [0,100]", "got", *refundPct)
		os.Exit(1)
	}
	period := model.MealPeriod(*periodFlag)
	if *periodFlag != "" {
		switch period {
		case model.Breakfast, model.Lunch, model.HappyHour, model.Dinner, model.LateNight:
		default:
			slog.Error("unknown -period", "got", *periodFlag)
			os.Exit(1)
		}
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	merchants := splitMerchants(*merchantsCSV)
	if len(merchants) == 0 {
		if id := os.Getenv("MERCHANT_ID"); id != "" {
			merchants = []string{id}
		} else if *dryRun {
			merchants = []string{"sandbox"}
		} else {
			slog.Error("no merchants: set -merchants or MERCHANT_ID")
			os.Exit(1)
		}
	}

	// --- Initialize ledger store ---
	var st ledger.Store
	var cleanup []func()

	if *dryRun {
		slog.Info("dry run: in-memory ledger, sandbox stub")
		st = ledger.NewMemoryStore()
	} else if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = ledger.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through summary cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = ledger.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory ledger (audit trail will not persist)")
		st = ledger.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- WebSocket feed hub ---
	hub := feed.NewHub()
	go hub.Run()

	// --- Status server ---
	srv := newStatusServer(st, hub)
	go func() {
		slog.Info("posgen status server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("status server error", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Run the day across merchants ---
	pool := runner.New(*workers, *timeout, func(ctx context.Context, merchantID string, rng *rand.Rand) (synth.Tally, error) {
		api := newAPI(merchantID, *dryRun)
		pacer := pace.New(*interval, *interval/4, rand.New(rand.NewSource(rng.Int63())))
		day := synth.NewOrchestrator(api, st, rng, pacer, hub, synth.DayConfig{
			MerchantID: merchantID,
			Count:      *count,
			Multiplier: *multiplier,
			RefundPct:  *refundPct,
			Period:     period,
		})
		return day.Run(ctx, date)
	})

	slog.Info("generation starting",
		"date", *dateStr, "merchants", len(merchants), "seed", *seed)
	results := pool.Run(ctx, merchants, *seed)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(out))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}

	if failed > 0 {
		slog.Error("generation finished with failures", "failed_merchants", failed)
		os.Exit(1)
	}
}

// newAPI builds the commerce API for one merchant: the HTTP sandbox client,
// or the in-process stub for dry runs.
func newAPI(merchantID string, dryRun bool) commerce.API {
	if dryRun {
		return commerce.NewStub()
	}
	return commerce.NewClient(commerce.Config{
		BaseURL:    os.Getenv("COMMERCE_BASE_URL"),
		Token:      os.Getenv("COMMERCE_TOKEN"),
		MerchantID: merchantID,
	})
}

// newStatusServer builds the observability surface: health, Prometheus
// metrics, summary lookups, and the live WebSocket feed.
func newStatusServer(st ledger.Store, hub *feed.Hub) *http.Server {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8090"
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(10 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"posgen"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/feed", hub.HandleWS)
		r.Get("/summary/{date}", func(w http.ResponseWriter, req *http.Request) {
			date := chi.URLParam(req, "date")
			merchantID := req.URL.Query().Get("merchant")
			if merchantID == "" {
				http.Error(w, `{"error":"merchant query parameter is required"}`, http.StatusBadRequest)
				return
			}
			sum, err := st.GetDailySummary(req.Context(), merchantID, date)
			if errors.Is(err, ledger.ErrNotFound) {
				http.Error(w, `{"error":"summary not found"}`, http.StatusNotFound)
				return
			}
			if err != nil {
				slog.Error("summary lookup failed", "err", err)
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(sum)
		})
	})

	return &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func splitMerchants(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if id := strings.TrimSpace(part); id != "" {
			out = append(out, id)
		}
	}
	return out
}
