package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/riven-labs/steward/internal/config"
	"github.com/riven-labs/steward/internal/logger"
	"github.com/riven-labs/steward/internal/metrics"
	"github.com/riven-labs/steward/pkg/checkpoint"
	"github.com/riven-labs/steward/pkg/confirm"
	"github.com/riven-labs/steward/pkg/coretools"
	"github.com/riven-labs/steward/pkg/policy"
	"github.com/riven-labs/steward/pkg/scheduler"
	"github.com/riven-labs/steward/pkg/tool"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the steward daemon",
	Long: `Run the steward daemon in the foreground. Turns are accepted over
HTTP on the configured listen address; confirmation requests are served
over a websocket on the same address and, when configured, forwarded to
Telegram.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer lg.Close()

	// Tool registry with the baseline set
	registry := tool.NewRegistry()
	if err := coretools.Register(registry, coretools.Options{
		WorkspaceRoot: cfg.WorkspacePath,
	}); err != nil {
		return err
	}

	// Policy engine, optionally live-reloaded from a rules file
	rules := policy.DefaultRuleSet()
	if cfg.Approval.RulesFile != "" {
		rules, err = policy.LoadRuleSet(cfg.Approval.RulesFile)
		if err != nil {
			return fmt.Errorf("failed to load policy rules: %w", err)
		}
	}
	engine := policy.NewEngine(rules)
	if cfg.Approval.RulesFile != "" {
		watcher, err := policy.NewRuleWatcher(engine, cfg.Approval.RulesFile)
		if err != nil {
			return fmt.Errorf("failed to watch policy rules: %w", err)
		}
		defer watcher.Stop()
	}

	// Checkpoint store and retention sweeper
	store, err := checkpoint.Open(cfg.CheckpointDBPath(), cfg.WorkspacePath)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	defer store.Close()

	sweeper, err := checkpoint.NewSweeper(store, cfg.Checkpoint.SweepSchedule, cfg.Checkpoint.Retention)
	if err != nil {
		return fmt.Errorf("failed to start checkpoint sweeper: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	// Confirmation bus with websocket and optional Telegram surfaces
	bus := confirm.NewBus()
	ws := confirm.NewWSForwarder(bus)
	defer ws.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.Confirm.Telegram.BotToken != "" && cfg.Confirm.Telegram.ChatID != 0 {
		if err := startTelegram(ctx, bus, cfg.Confirm.Telegram); err != nil {
			return err
		}
	}

	mode, err := policy.ParseApprovalMode(cfg.Approval.Mode)
	if err != nil {
		return err
	}

	m := metrics.New()
	sched := scheduler.New(registry, engine, bus, store, m, scheduler.Config{
		ApprovalMode:    mode,
		ApprovalTimeout: cfg.Scheduler.ApprovalTimeout,
		ExecuteTimeout:  cfg.Scheduler.ExecuteTimeout,
		GracePeriod:     cfg.Scheduler.GracePeriod,
	})

	mux := http.NewServeMux()
	mux.Handle("/confirm", ws)
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/turns", turnHandler(sched))
	mux.HandleFunc("/tools", toolsHandler(registry))

	server := &http.Server{
		Addr:              cfg.Confirm.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Confirm.ListenAddr).Msg("steward listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// turnRequest is the wire form of a submitted turn.
type turnRequest struct {
	MessageID string             `json:"message_id"`
	Requests  []tool.CallRequest `json:"requests"`
}

func turnHandler(sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req turnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid turn: %v", err), http.StatusBadRequest)
			return
		}
		if len(req.Requests) == 0 {
			http.Error(w, "turn has no tool calls", http.StatusBadRequest)
			return
		}

		outcomes := sched.RunTurn(r.Context(), req.MessageID, req.Requests)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(outcomes); err != nil {
			log.Error().Err(err).Msg("failed to encode turn outcomes")
		}
	}
}

func toolsHandler(registry *tool.Registry) http.HandlerFunc {
	type toolInfo struct {
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
		Description string `json:"description"`
		Kind        string `json:"kind"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		descriptors := registry.List()
		infos := make([]toolInfo, 0, len(descriptors))
		for _, d := range descriptors {
			infos = append(infos, toolInfo{
				Name:        d.Name,
				DisplayName: d.DisplayName,
				Description: d.Description,
				Kind:        string(d.Kind),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(infos); err != nil {
			log.Error().Err(err).Msg("failed to encode tool list")
		}
	}
}

// startTelegram connects the bot, wires the forwarder and pumps callback
// queries back into it until ctx is cancelled.
func startTelegram(ctx context.Context, bus *confirm.Bus, cfg config.TelegramConfig) error {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	forwarder := confirm.NewTelegramForwarder(api, bus, cfg.ChatID)

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := api.GetUpdatesChan(updateCfg)

	go func() {
		defer forwarder.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.CallbackQuery == nil {
					continue
				}
				if err := forwarder.HandleCallback(update.CallbackQuery); err != nil {
					log.Warn().Err(err).Msg("unhandled telegram callback")
				}
			}
		}
	}()

	log.Info().Int64("chat_id", cfg.ChatID).Msg("telegram approvals enabled")
	return nil
}
