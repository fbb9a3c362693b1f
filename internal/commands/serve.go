package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/denar-dev/denar/internal/approval"
	"github.com/denar-dev/denar/internal/bank"
	"github.com/denar-dev/denar/internal/config"
	"github.com/denar-dev/denar/internal/cycle"
	gwmem "github.com/denar-dev/denar/internal/gateway/memory"
	"github.com/denar-dev/denar/internal/ledger"
	"github.com/denar-dev/denar/internal/loan"
	"github.com/denar-dev/denar/internal/lottery"
	"github.com/denar-dev/denar/internal/store/sqlite"
)

const (
	cycleUsageReset = "usage_reset"
	cycleAccrual    = "accrual"
)

func newServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ledger service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "denar.yaml", "path to denar.yaml")

	return cmd
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() { _ = st.Close() }()

	originationFee, err := cfg.OriginationFee()
	if err != nil {
		return err
	}
	ticketCost, err := cfg.TicketCost()
	if err != nil {
		return err
	}
	houseCut, err := cfg.HouseCut()
	if err != nil {
		return err
	}
	tick, err := cfg.Tick()
	if err != nil {
		return err
	}
	usageResetEvery, err := cfg.UsageReset()
	if err != nil {
		return err
	}
	accrualEvery, err := cfg.Accrual()
	if err != nil {
		return err
	}

	// The chat transport is the integration point: swap in a real
	// gateway.Gateway implementation here. The in-memory gateway records
	// deliveries but cannot reach moderators.
	gw := gwmem.New()
	log.Warn("using in-memory gateway; moderation prompts are not deliverable")

	banks := bank.NewService(st, log)
	loans := loan.NewService(st, gw, banks, cfg.Bank.FloatAccount, originationFee, log)
	draws := lottery.NewService(st, banks, cfg.Bank.PoolAccount, cfg.Bank.FloatAccount, ticketCost, houseCut, log)
	queue := approval.New(st, gw, cfg.Channels.Moderation, log)

	svc := ledger.NewService(banks, loans, draws, queue, st, gw, ledger.Policy{
		ModerationChannel: cfg.Channels.Moderation,
		AuditChannel:      cfg.Channels.Audit,
		FloatAccount:      cfg.Bank.FloatAccount,
		PoolAccount:       cfg.Bank.PoolAccount,
		Operators:         cfg.Bank.Operators,
	}, log)

	system := map[string]string{
		cfg.Bank.FloatAccount: cfg.Bank.FloatPassword,
		cfg.Bank.PoolAccount:  cfg.Bank.PoolPassword,
	}
	if err := banks.EnsureSystemAccounts(ctx, system); err != nil {
		return fmt.Errorf("bootstrapping system accounts: %w", err)
	}

	sched := cycle.New(st, tick, []cycle.Trigger{
		{Name: cycleUsageReset, Every: usageResetEvery, Run: svc.ResetUsageCounters},
		{Name: cycleAccrual, Every: accrualEvery, Run: svc.RunAccrualCycle},
	}, log)

	log.Info("ledger service started",
		zap.String("db", cfg.Storage.Path),
		zap.String("moderation_channel", cfg.Channels.Moderation),
		zap.Int("operators", len(cfg.Bank.Operators)))

	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("ledger service stopped")
	return nil
}
