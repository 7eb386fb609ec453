package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/idlematch/idlematch/internal/config"
	"github.com/idlematch/idlematch/pkg/core/model"
	"github.com/idlematch/idlematch/pkg/core/services"
	"github.com/idlematch/idlematch/pkg/db"
	"github.com/idlematch/idlematch/pkg/utils/logging"
)

// App holds the application dependencies
type App struct {
	cfg      *config.Config
	database *db.DB
	workflow *services.Workflow
	logger   *zap.Logger
	ctx      context.Context
}

var (
	env string
	app *App
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "IdleMatch CLI - Allocate under-used rooms to pending requests",
		Long:  `A CLI tool for drafting, reviewing, and approving idle-room allocations, plus what-if simulations against temporary constraints.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil && app.database != nil {
				app.database.Close()
			}
			if app != nil && app.logger != nil {
				app.logger.Sync()
			}
		},
	}

	// Add persistent environment flag
	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")

	// Add all commands
	rootCmd.AddCommand(allocateCmd())
	rootCmd.AddCommand(approveCmd())
	rootCmd.AddCommand(draftCmd())
	rootCmd.AddCommand(simulateCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(predictCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(addRoomCmd())
	rootCmd.AddCommand(addRequestCmd())
	rootCmd.AddCommand(viewAllocationsCmd())
	rootCmd.AddCommand(viewForecastsCmd())
	rootCmd.AddCommand(interactiveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, database, and the allocation workflow
func initApp() error {
	var err error
	app = &App{
		ctx: context.Background(),
	}

	// Initialize logger
	app.logger, err = logging.InitLogger(env)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.logger.Info("Starting application", zap.String("environment", env))

	// Load configuration
	app.logger.Info("Loading configuration")
	app.cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.logger.Debug("Configuration loaded successfully")

	// Connect to the database
	app.logger.Info("Connecting to database")
	app.database, err = db.NewDB(app.ctx, app.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Apply pending schema migrations
	app.logger.Info("Running database migrations")
	if err := app.database.RunMigrations(app.ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	app.logger.Debug("Database ready")

	// Wire the allocation workflow
	predictor := services.NewFallbackPredictor(app.database, app.cfg.Prediction)
	app.workflow = services.NewWorkflow(app.database, predictor, app.cfg, app.logger)
	app.logger.Info("Workflow initialized successfully")

	return nil
}

// Command definitions

func allocateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allocate <date> <time_slot>",
		Short: "Draft an allocation for the given date and time slot (HH-HH)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := services.AllocateParams{
				Date:     args[0],
				TimeSlot: args[1],
			}
			if cmd.Flags().Changed("threshold") {
				threshold, _ := cmd.Flags().GetFloat64("threshold")
				params.IdleProbabilityThreshold = &threshold
			}
			if cmd.Flags().Changed("cap") {
				usageCap, _ := cmd.Flags().GetFloat64("cap")
				params.StakeholderUsageCap = &usageCap
			}

			result, err := app.workflow.Allocate(app.ctx, params)
			if err != nil {
				return err
			}

			// Display results
			fmt.Printf("\n✓ Allocation draft ready!\n\n")
			fmt.Printf("Date:      %s\n", params.Date)
			fmt.Printf("Time Slot: %s\n", params.TimeSlot)
			fmt.Printf("Objective: %.4f\n", result.ObjectiveValue)
			fmt.Printf("Fairness:  %.4f\n", result.FairnessMetric)
			if result.UsedFallback {
				fmt.Printf("Strategy:  greedy fallback\n")
			} else {
				fmt.Printf("Strategy:  exact\n")
			}
			fmt.Println()

			if len(result.Assignments) > 0 {
				fmt.Printf("Assignments:\n")
				for _, a := range result.Assignments {
					fmt.Printf("  request %4d -> room %3d (score %.4f)\n", a.RequestID, a.RoomID, a.Score)
				}
				fmt.Println()
			}
			if len(result.UnassignedRequestIDs) > 0 {
				fmt.Printf("Unassigned requests: %v\n\n", result.UnassignedRequestIDs)
			}
			fmt.Println("Run 'approve' to commit this draft.")

			return nil
		},
	}

	cmd.Flags().Float64("threshold", 0, "Override the idle probability threshold for this run")
	cmd.Flags().Float64("cap", 0, "Override the stakeholder usage cap for this run")

	return cmd
}

func approveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve",
		Short: "Commit the pending allocation draft",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.workflow.Approve(app.ctx)
			if errors.Is(err, services.ErrDraftNotFound) {
				fmt.Println("No pending draft. Run 'allocate' first.")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Allocation approved!\n\n")
			fmt.Printf("Status:      %s\n", result.Status)
			fmt.Printf("Allocations: %d\n", result.ApprovedAllocationsCount)
			fmt.Printf("Objective:   %.4f\n", result.ObjectiveValue)
			fmt.Printf("Fairness:    %.4f\n\n", result.FairnessMetric)

			return nil
		},
	}
}

func draftCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "draft",
		Short: "Show the pending allocation draft, if any",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			draft := app.workflow.Draft()
			if draft == nil {
				fmt.Println("No pending draft.")
				return nil
			}

			fmt.Printf("\nPending draft (created %s):\n\n", draft.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Date:      %s\n", draft.Date)
			fmt.Printf("Time Slot: %s\n", draft.TimeSlot)
			fmt.Printf("Objective: %.4f\n", draft.Result.ObjectiveValue)
			fmt.Printf("Fairness:  %.4f\n\n", draft.Result.FairnessMetric)
			for _, a := range draft.Result.Assignments {
				fmt.Printf("  request %4d -> room %3d (score %.4f)\n", a.RequestID, a.RoomID, a.Score)
			}
			fmt.Println()

			return nil
		},
	}
}

func simulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Compare a what-if scenario against the current baseline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			override := services.SimulationOverride{}
			if cmd.Flags().Changed("threshold") {
				threshold, _ := cmd.Flags().GetFloat64("threshold")
				override.IdleThreshold = &threshold
			}
			if cmd.Flags().Changed("cap") {
				usageCap, _ := cmd.Flags().GetFloat64("cap")
				override.StakeholderCap = &usageCap
			}

			capacityPairs, _ := cmd.Flags().GetStringSlice("room-capacity")
			if len(capacityPairs) > 0 {
				capacities, err := parseCapacityPairs(capacityPairs)
				if err != nil {
					return err
				}
				override.CapacityOverride = capacities
			}

			priorityPairs, _ := cmd.Flags().GetStringSlice("priority")
			if len(priorityPairs) > 0 {
				priorities, err := parsePriorityPairs(priorityPairs)
				if err != nil {
					return err
				}
				override.PriorityAdjustment = priorities
			}

			result, err := app.workflow.Simulate(app.ctx, override)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Simulation complete (run %s)\n\n", result.RunID)
			fmt.Printf("%-28s %12s %12s %12s\n", "Metric", "Baseline", "Simulated", "Delta")
			fmt.Printf("%-28s %12.4f %12.4f %+12.4f\n", "Utilization rate",
				result.Baseline.UtilizationRate, result.Simulated.UtilizationRate, result.Delta.UtilizationRate)
			fmt.Printf("%-28s %12d %12d %+12d\n", "Requests satisfied",
				result.Baseline.RequestsSatisfied, result.Simulated.RequestsSatisfied, result.Delta.RequestsSatisfied)
			fmt.Printf("%-28s %12.4f %12.4f %+12.4f\n", "Objective value",
				result.Baseline.ObjectiveValue, result.Simulated.ObjectiveValue, result.Delta.ObjectiveValue)
			fmt.Printf("%-28s %12d %12d %+12d\n", "Rooms utilized",
				result.Baseline.RoomsUtilized, result.Simulated.RoomsUtilized, result.Delta.RoomsUtilized)
			fmt.Printf("%-28s %12.4f %12.4f %+12.4f\n", "Avg idle prob (utilized)",
				result.Baseline.AverageIdleProbabilityUtilized, result.Simulated.AverageIdleProbabilityUtilized,
				result.Delta.AverageIdleProbabilityUtilized)
			fmt.Printf("%-28s %12.4f %12.4f %+12.4f\n", "Fairness",
				result.Baseline.FairnessMetric, result.Simulated.FairnessMetric, result.Delta.FairnessMetric)
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().Float64("threshold", 0, "Simulated idle probability threshold")
	cmd.Flags().Float64("cap", 0, "Simulated stakeholder usage cap")
	cmd.Flags().StringSlice("room-capacity", nil, "Simulated room capacity as roomID=capacity (repeatable)")
	cmd.Flags().StringSlice("priority", nil, "Simulated priority multiplier as stakeholder=multiplier (repeatable)")

	return cmd
}

func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the allocation scheduler until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(app.ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			scheduler := services.NewScheduler(app.workflow, app.cfg.Schedule, app.logger)
			fmt.Printf("Scheduler running (%s), press Ctrl+C to stop.\n", app.cfg.Schedule.Cron)

			err := scheduler.Run(ctx)
			if errors.Is(err, context.Canceled) {
				fmt.Println("\nScheduler stopped.")
				return nil
			}
			return err
		},
	}
}

func predictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict <room_id> <date> <time_slot>",
		Short: "Generate and persist a fallback idle prediction for a room",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("room_id must be a number: %w", err)
			}

			predictor := services.NewFallbackPredictor(app.database, app.cfg.Prediction)
			prediction, err := predictor.Predict(app.ctx, roomID, args[1], args[2], true)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Prediction saved!\n\n")
			fmt.Printf("Room:             %d\n", prediction.RoomID)
			fmt.Printf("Date:             %s\n", prediction.Date)
			fmt.Printf("Time Slot:        %s\n", prediction.TimeSlot)
			fmt.Printf("Idle Probability: %.4f\n", prediction.IdleProbability)
			fmt.Printf("Confidence:       %.4f\n\n", prediction.ConfidenceScore)

			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// initApp already migrated on startup; rerunning confirms a clean state
			if err := app.database.RunMigrations(app.ctx); err != nil {
				return err
			}
			fmt.Println("\n✓ Database schema is up to date.")
			return nil
		},
	}
}

func addRoomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "addRoom <name> <capacity>",
		Short: "Register a room",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			capacity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("capacity must be a number: %w", err)
			}
			roomType, _ := cmd.Flags().GetString("type")

			room := model.Room{Name: args[0], Capacity: capacity, Type: roomType}
			if err := app.database.InsertRoom(app.ctx, &room); err != nil {
				return err
			}

			fmt.Printf("\n✓ Room created with ID %d\n\n", room.ID)
			return nil
		},
	}

	cmd.Flags().String("type", "", "Room type label (e.g. classroom, lab)")

	return cmd
}

func addRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "addRequest <stakeholder> <capacity> <date> <time_slot>",
		Short: "Register a pending room request",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			capacity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("capacity must be a number: %w", err)
			}
			priority, _ := cmd.Flags().GetFloat64("priority")

			request := model.Request{
				StakeholderID:     args[0],
				RequestedCapacity: capacity,
				PriorityWeight:    priority,
				Date:              args[2],
				TimeSlot:          args[3],
				Status:            model.StatusPending,
			}
			if err := app.database.InsertRequest(app.ctx, &request); err != nil {
				return err
			}

			fmt.Printf("\n✓ Request created with ID %d\n\n", request.ID)
			return nil
		},
	}

	cmd.Flags().Float64("priority", 1.0, "Priority weight for the request")

	return cmd
}

func viewAllocationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "viewAllocations <date> <time_slot>",
		Short: "View committed allocations for a date and time slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := app.database.ListAllocationLogs(app.ctx, args[0], args[1])
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("No committed allocations for this slot.")
				return nil
			}

			fmt.Printf("\nFound %d allocations:\n\n", len(entries))
			for _, e := range entries {
				fmt.Printf("- request %4d -> room %3d (score %.4f) [%s]\n", e.RequestID, e.RoomID, e.Score, e.ID)
			}
			fmt.Println()

			return nil
		},
	}
}

func viewForecastsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "viewForecasts",
		Short: "View the latest per-slot demand intensity forecasts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			forecasts, err := app.database.ListDemandForecasts(app.ctx)
			if err != nil {
				return err
			}

			if len(forecasts) == 0 {
				fmt.Println("No demand forecasts yet. Run 'allocate' to generate them.")
				return nil
			}

			fmt.Printf("\nDemand forecasts (%d slots):\n\n", len(forecasts))
			for _, f := range forecasts {
				fmt.Printf("- %s %s: %d requests (intensity %.4f)\n", f.Date, f.TimeSlot, f.RequestCount, f.IntensityScore)
			}
			fmt.Println()

			return nil
		},
	}
}

func parseCapacityPairs(pairs []string) (map[int]int, error) {
	capacities := make(map[int]int, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("room capacity override must be roomID=capacity, got %q", pair)
		}
		roomID, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("room ID must be a number in %q: %w", pair, err)
		}
		capacity, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("capacity must be a number in %q: %w", pair, err)
		}
		capacities[roomID] = capacity
	}
	return capacities, nil
}

func parsePriorityPairs(pairs []string) (map[string]float64, error) {
	priorities := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		stakeholder, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("priority adjustment must be stakeholder=multiplier, got %q", pair)
		}
		multiplier, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("multiplier must be a number in %q: %w", pair, err)
		}
		priorities[stakeholder] = multiplier
	}
	return priorities, nil
}

func interactiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Start an interactive session (connect once, run multiple commands)",
		Long: `Start an interactive session where you can run multiple commands without reconnecting.
The session will keep running until you type 'exit' or 'quit'.

Drafts survive between commands here, so 'allocate' followed by 'approve'
works within one session.

Type 'help' to see available commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("\nStarting interactive session...")
			fmt.Println("Type 'help' for available commands, 'exit' or 'quit' to leave")

			// Get all sibling commands (excluding interactive itself)
			rootCmd := cmd.Parent()
			commands := make(map[string]*cobra.Command)
			for _, subCmd := range rootCmd.Commands() {
				if subCmd.Name() != "interactive" && subCmd.Name() != "completion" && subCmd.Name() != "help" {
					commands[subCmd.Name()] = subCmd
				}
			}

			scanner := bufio.NewScanner(os.Stdin)

			for {
				fmt.Print("> ")

				if !scanner.Scan() {
					break
				}

				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}

				// Parse command
				parts := strings.Fields(line)
				cmdName := parts[0]
				cmdArgs := parts[1:]

				// Handle exit
				if cmdName == "exit" || cmdName == "quit" {
					fmt.Println("Goodbye!")
					return nil
				}

				// Handle help
				if cmdName == "help" {
					printInteractiveHelp(commands)
					continue
				}

				// Execute command via Cobra
				targetCmd, exists := commands[cmdName]
				if !exists {
					fmt.Printf("Unknown command: %s (type 'help' for available commands)\n\n", cmdName)
					continue
				}

				// Reset command flags and args
				targetCmd.Flags().VisitAll(func(flag *pflag.Flag) {
					flag.Changed = false
					flag.Value.Set(flag.DefValue)
				})

				// Execute the command's RunE directly, bypassing the full Execute() flow
				// This avoids re-running PersistentPreRunE which would call initApp() again
				if err := targetCmd.ParseFlags(cmdArgs); err != nil {
					fmt.Printf("Error parsing flags: %v\n\n", err)
					continue
				}

				// Get non-flag args after parsing flags
				cmdArgs = targetCmd.Flags().Args()

				// Validate args
				if err := targetCmd.Args(targetCmd, cmdArgs); err != nil {
					fmt.Printf("Error: %v\n\n", err)
					continue
				}

				// Execute the RunE function directly
				if targetCmd.RunE != nil {
					if err := targetCmd.RunE(targetCmd, cmdArgs); err != nil {
						fmt.Printf("Error: %v\n\n", err)
					}
				} else if targetCmd.Run != nil {
					targetCmd.Run(targetCmd, cmdArgs)
				}
			}

			if err := scanner.Err(); err != nil {
				return fmt.Errorf("error reading input: %w", err)
			}

			return nil
		},
	}

	return cmd
}

func printInteractiveHelp(commands map[string]*cobra.Command) {
	fmt.Println("\nAvailable commands:")

	// Get command names and sort them
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	// Print each command with its short description
	for _, name := range names {
		cmd := commands[name]
		fmt.Printf("  %-30s %s\n", cmd.Use, cmd.Short)
	}

	fmt.Println("\n  help                           Show this help message")
	fmt.Println("  exit, quit                     Exit the interactive session")
}
