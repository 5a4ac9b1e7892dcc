package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"antique-auction/internal/auctionlock"
	"antique-auction/internal/auth"
	bidding "antique-auction/internal/biddingService"
	"antique-auction/internal/broker"
	"antique-auction/internal/clock"
	"antique-auction/internal/config"
	"antique-auction/internal/events"
	"antique-auction/internal/models"
	"antique-auction/internal/realtime"
	"antique-auction/internal/repository"
	"antique-auction/internal/scheduler"
	"antique-auction/internal/server"
	"antique-auction/utils"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.Fatal("invalid configuration", map[string]any{"error": err.Error()})
	}
	utils.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openRepo(cfg)
	if err != nil {
		utils.Fatal("failed to open auction store", map[string]any{"driver": cfg.StoreDriver, "error": err.Error()})
	}

	hub := realtime.NewHub(ctx, 0)
	publishers := events.Fanout{hub}

	var bus *broker.Publisher
	if cfg.RabbitMQURL != "" {
		bus, err = broker.Dial(cfg.RabbitMQURL, broker.DefaultBufferSize)
		if err != nil {
			utils.Fatal("failed to connect to rabbitmq", map[string]any{"error": err.Error()})
		}
		publishers = append(publishers, bus)
	} else {
		utils.Warn("RABBITMQ_URL not set, events stay in-process", nil)
	}

	clk := clock.New()
	svc := bidding.NewBiddingService(repo,
		bidding.WithPublisher(publishers),
		bidding.WithClock(clk),
		bidding.WithLocker(auctionlock.New(cfg.LockTimeout, cfg.MaxWaiters)),
		bidding.WithMinIncrement(cfg.MinIncrement),
		bidding.WithEndingSoonLead(cfg.EndingSoonLead),
	)
	sched := scheduler.New(svc, clk, svc.EndingSoonLead())

	if cfg.SeedDemo {
		seedDemoAuctions(ctx, svc, sched, clk.Now())
	}
	if n, err := sched.Reconcile(ctx); err != nil {
		utils.Error("failed to reconcile auctions", map[string]any{"error": err.Error()})
	} else {
		utils.Info("auctions reconciled", map[string]any{"advanced": n, "tracked": sched.Pending()})
	}

	router := server.SetupRouter(server.Deps{
		Service:       svc,
		Tracker:       sched,
		Hub:           hub,
		Verifier:      auth.NewVerifier(cfg.JWTSecret),
		Redis:         config.NewRedisClient(cfg),
		BidsPerMinute: cfg.BidsPerMinute,
		WSReadTimeout: cfg.WSReadTimeout,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		utils.Info("starting auction server", map[string]any{"addr": srv.Addr, "store": cfg.StoreDriver})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		utils.Info("shutting down", nil)
		sched.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if bus != nil {
			if cerr := bus.Close(); cerr != nil {
				utils.Warn("failed to close rabbitmq publisher", map[string]any{"error": cerr.Error()})
			}
		}
		return err
	})

	if err := g.Wait(); err != nil {
		utils.Fatal("server stopped with error", map[string]any{"error": err.Error()})
	}
}

func openRepo(cfg config.Config) (repository.AuctionDB, error) {
	if cfg.StoreDriver == config.DriverPostgres {
		return repository.NewGormRepo(cfg.DatabaseURL)
	}
	return repository.NewMemoryRepo(), nil
}

// seedDemoAuctions creates a few auctions around now so a fresh server has
// something to bid on
func seedDemoAuctions(ctx context.Context, svc *bidding.BiddingService, sched *scheduler.Scheduler, now time.Time) {
	demo := []models.Auction{
		{ItemID: "item-1", Title: "Victorian carriage clock", StartingBid: 12000, StartTime: now, EndTime: now.Add(30 * time.Minute)},
		{ItemID: "item-2", Title: "Art deco table lamp", StartingBid: 8500, StartTime: now.Add(2 * time.Minute), EndTime: now.Add(20 * time.Minute)},
		{ItemID: "item-3", Title: "Georgian silver teapot", StartingBid: 45000, StartTime: now, EndTime: now.Add(3 * time.Minute)},
	}

	for _, a := range demo {
		created, err := svc.CreateAuction(ctx, a)
		if err != nil {
			utils.Warn("failed to seed demo auction", map[string]any{"item_id": a.ItemID, "error": err.Error()})
			continue
		}
		sched.Track(created)
	}
}
