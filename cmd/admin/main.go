// Package main provides admin management utilities for chainhire.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"chainhire/internal/cache"
	"chainhire/internal/chain"
	"chainhire/internal/config"
	"chainhire/internal/database"
	"chainhire/internal/models"
	"chainhire/internal/notifications"
	"chainhire/internal/repository"
	"chainhire/internal/service"

	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin promote <user_id>      - Promote user to admin")
	fmt.Println("  go run ./cmd/admin demote <user_id>       - Demote user from admin")
	fmt.Println("  go run ./cmd/admin list-admins            - List all admins")
	fmt.Println("  go run ./cmd/admin reconcile-payments     - Re-check pending job payments on chain")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	users := service.NewUserService(repository.NewUserRepository(db))

	switch command := os.Args[1]; command {
	case "promote", "demote":
		if len(os.Args) < 3 {
			fmt.Printf("Usage: go run ./cmd/admin %s <user_id>\n", command)
			os.Exit(1)
		}
		setAdmin(ctx, users, os.Args[2], command == "promote")

	case "list-admins":
		listAdmins(ctx, users)

	case "reconcile-payments":
		reconcilePayments(ctx, cfg, db)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

func setAdmin(ctx context.Context, users *service.UserService, rawID string, promote bool) {
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || id == 0 {
		fmt.Printf("Invalid user ID %q\n", rawID)
		os.Exit(1)
	}

	current, err := users.GetUserByID(ctx, uint(id))
	if err != nil {
		fmt.Printf("User with ID %s not found: %v\n", rawID, err)
		os.Exit(1)
	}
	if current.IsAdmin == promote {
		fmt.Printf("User %s (ID: %d) already has is_admin=%v\n", displayName(current), current.ID, promote)
		return
	}

	user, err := users.SetAdmin(ctx, uint(id), promote)
	if err != nil {
		log.Fatalf("Failed to update user: %v", err)
	}

	verb := "demoted"
	if promote {
		verb = "promoted"
	}
	fmt.Printf("✅ Successfully %s %s (ID: %d)\n", verb, displayName(user), user.ID)
}

func listAdmins(ctx context.Context, users *service.UserService) {
	admins, err := users.ListAdmins(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No admins found in the system")
		return
	}

	fmt.Println("\n📋 Current Admins:")
	fmt.Println("─────────────────────────────────────")
	for _, admin := range admins {
		email := "-"
		if admin.Email != nil {
			email = *admin.Email
		}
		fmt.Printf("ID: %d | Name: %s | Email: %s | Wallet: %s\n",
			admin.ID, displayName(admin), email, admin.Profile.Wallet())
	}
	fmt.Println("─────────────────────────────────────")
}

func reconcilePayments(ctx context.Context, cfg *config.Config, db *gorm.DB) {
	if cfg.ChainRPCURL == "" {
		log.Fatal("CHAIN_RPC_URL must be set to reconcile payments")
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ChainTimeout())
	client, err := chain.Dial(dialCtx, cfg.ChainRPCURL)
	cancel()
	if err != nil {
		log.Fatalf("Failed to reach chain node: %v", err)
	}
	defer client.Close()

	// Connected clients hear about activated jobs through Redis when it is reachable.
	cache.InitRedis(cfg.RedisURL)
	var notifier *notifications.Notifier
	if rdb := cache.GetClient(); rdb != nil {
		notifier = notifications.NewNotifier(rdb)
		defer func() { _ = rdb.Close() }()
	}
	users := service.NewUserService(repository.NewUserRepository(db))

	payments, err := service.NewPaymentService(
		repository.NewPaymentRepository(db),
		repository.NewJobRepository(db),
		chain.NewVerifier(client, cfg.ChainID),
		service.PaymentSettings{
			FeeETH:        cfg.JobPostFeeETH,
			Recipient:     cfg.PlatformWallet,
			ChainID:       cfg.ChainID,
			Confirmations: cfg.RequiredConfirmations,
			ExplorerTxURL: cfg.ExplorerTxURL,
			Timeout:       cfg.ChainTimeout(),
			PendingTTL:    cfg.PendingPaymentTTL(),
		},
		users.IsAdmin,
		notifications.NewBus(notifier, nil, nil),
	)
	if err != nil {
		log.Fatalf("Invalid payment settings: %v", err)
	}

	report, err := payments.ReconcilePending(ctx)
	if err != nil {
		log.Fatalf("Reconcile failed: %v", err)
	}
	fmt.Printf("🔗 Checked %d pending payments: %d confirmed, %d failed, %d still pending, %d errors\n",
		report.Checked, report.Confirmed, report.Failed, report.StillPending, report.Errors)
}

func displayName(u *models.User) string {
	if u.Profile != nil && u.Profile.Name != "" {
		return u.Profile.Name
	}
	if u.Email != nil {
		return *u.Email
	}
	return u.Profile.Wallet()
}
