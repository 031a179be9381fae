package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"ft-go/internal/app"
	"ft-go/internal/config"
	"ft-go/internal/encryption"
	"ft-go/internal/ft"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an FTApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Scan", "Execute").
func newApp(operation string) (*app.FTApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewFTApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "ft",
	Short: "File deduplication and migration tool",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:        %s\n", cfg.HostID)
		fmt.Printf("Base Dir:       %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:        %s\n", cfg.LogDir)
		fmt.Printf("Canonical Root: %s\n", cfg.CanonicalRoot)
		fmt.Printf("Scan Roots:     %s\n", strings.Join(cfg.Roots, ", "))
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate the archive encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return fmt.Errorf("creating encryptor: %w", err)
		}
		if enc.IsConfigured() {
			return fmt.Errorf("key pair already exists at %s", cfg.Encryption.PublicKeyPath)
		}

		passphrase, err := promptPassphrase("Passphrase for the private key: ")
		if err != nil {
			return err
		}
		confirm, err := promptPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := enc.Setup(passphrase); err != nil {
			return fmt.Errorf("generating key pair: %w", err)
		}
		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s (passphrase protected)\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

func promptPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(raw), nil
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover and register files under the configured roots",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Scan")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Scan(cmd.Context())
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		fmt.Printf("Discovered %d file(s), %s read, %d new record(s), %d error(s)\n",
			result.Discovered,
			humanize.Bytes(uint64(result.BytesRead)),
			result.Created,
			result.Errors,
		)
		return nil
	},
}

// classify command
var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify pending files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Classify")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Classify(cmd.Context())
		if err != nil {
			return fmt.Errorf("classification failed: %w", err)
		}

		fmt.Printf("Classified %d of %d pending file(s); %d left pending, %d error(s)\n",
			result.Classified, result.Pending, result.Unclassified, result.Errors)
		return nil
	},
}

// analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Detect duplicate files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Analyze")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Analyze(cmd.Context())
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}

		fmt.Printf("%d candidate(s), %d group(s), %d duplicate(s), %d fuzzy suggestion(s)\n",
			result.Candidates, result.Groups, result.Duplicates, result.Suggestions)
		return nil
	},
}

// dups command
var dupsCmd = &cobra.Command{
	Use:   "dups",
	Short: "List duplicate groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListDuplicates")
		if err != nil {
			return err
		}
		defer a.Close()

		groups, err := a.ListDuplicateGroups()
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Println("No duplicate groups.")
			return nil
		}

		for _, g := range groups {
			fmt.Printf("%s  %s  %d member(s)\n", g.ID, g.DetectionMethod, len(g.MemberFileIDs))
			for _, id := range g.MemberFileIDs {
				rec, err := a.File(id)
				if err != nil || rec == nil {
					continue
				}
				marker := " "
				if id == g.CanonicalFileID {
					marker = "*"
				}
				fmt.Printf("  %s %s\n", marker, rec.Location())
			}
		}
		return nil
	},
}

// review command
var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List near-duplicate suggestions awaiting review",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListNearDuplicates")
		if err != nil {
			return err
		}
		defer a.Close()

		pairs, err := a.ListNearDuplicates()
		if err != nil {
			return err
		}
		if len(pairs) == 0 {
			fmt.Println("Nothing to review.")
			return nil
		}

		for _, p := range pairs {
			fmt.Printf("%.2f  %s <-> %s\n", p.Similarity, p.FileIDA, p.FileIDB)
		}
		return nil
	},
}

// plan commands
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Build a migration plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		duplicateAction, _ := cmd.Flags().GetString("duplicates")

		a, err := newApp("Plan")
		if err != nil {
			return err
		}
		defer a.Close()

		plan, err := a.Plan(cmd.Context(), duplicateAction)
		if err != nil {
			return fmt.Errorf("planning failed: %w", err)
		}

		fmt.Printf("Plan %s: %d action(s)\n", plan.ID, len(plan.Actions))
		printActions(plan)
		fmt.Printf("\nReview with 'ft plan show %s', then 'ft approve %s'\n", plan.ID, plan.ID)
		return nil
	},
}

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent plans",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("ListPlans")
		if err != nil {
			return err
		}
		defer a.Close()

		plans, err := a.ListPlans(limit)
		if err != nil {
			return err
		}
		if len(plans) == 0 {
			fmt.Println("No plans recorded.")
			return nil
		}

		for _, p := range plans {
			fmt.Printf("%s  %-11s  %s\n", p.ID, p.Status, p.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var planShowCmd = &cobra.Command{
	Use:   "show PLAN_ID",
	Short: "Show a plan's actions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ShowPlan")
		if err != nil {
			return err
		}
		defer a.Close()

		plan, err := a.GetPlan(args[0])
		if err != nil {
			return err
		}
		if plan == nil {
			return fmt.Errorf("no plan with id %s", args[0])
		}

		fmt.Printf("Plan %s (%s), %d action(s):\n", plan.ID, plan.Status, len(plan.Actions))
		printActions(plan)
		return nil
	},
}

func printActions(plan *ft.MigrationPlan) {
	for _, action := range plan.Actions {
		review := ""
		if action.RequiresReview {
			review = "  [review]"
		}
		switch action.Type {
		case ft.ActionMove, ft.ActionCopy:
			fmt.Printf("  %-7s %s -> %s%s\n", action.Type, action.SourcePath, action.TargetPath, review)
		default:
			fmt.Printf("  %-7s %s%s\n", action.Type, action.SourcePath, review)
		}
	}
}

// approve command
var approveCmd = &cobra.Command{
	Use:   "approve PLAN_ID",
	Short: "Approve a plan for execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Approve")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Approve(args[0]); err != nil {
			return fmt.Errorf("approving plan: %w", err)
		}
		fmt.Printf("Plan %s approved\n", args[0])
		return nil
	},
}

// execute command
var executeCmd = &cobra.Command{
	Use:   "execute PLAN_ID",
	Short: "Execute an approved plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Execute")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Execute(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("execution failed: %w", err)
		}

		fmt.Printf("%d succeeded, %d failed, %d skipped (of %d)\n",
			result.Succeeded, result.Failed, result.Skipped, result.Total)
		if result.RolledBack {
			fmt.Println("Failure threshold exceeded: the plan was rolled back.")
		}
		for _, r := range result.Reports {
			if r.Error != "" {
				fmt.Printf("  failed: %s: %s\n", r.SourcePath, r.Error)
			}
		}
		return nil
	},
}

// rollback command
var rollbackCmd = &cobra.Command{
	Use:   "rollback PLAN_ID",
	Short: "Undo an executed plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		withKey, _ := cmd.Flags().GetBool("unlock")

		passphrase := ""
		if withKey {
			var err error
			passphrase, err = promptPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
		}

		a, err := newApp("Rollback")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Rollback(cmd.Context(), args[0], passphrase); err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
		fmt.Printf("Plan %s rolled back\n", args[0])
		return nil
	},
}

// reorganize command
var reorganizeCmd = &cobra.Command{
	Use:   "reorganize",
	Short: "Converge the canonical tree with the registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := newApp("Reorganize")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Reorganize(cmd.Context(), dryRun)
		if err != nil {
			return fmt.Errorf("reorganize failed: %w", err)
		}

		fmt.Printf("Sync: %d on disk, %d discovered, %d external move(s), %d missing\n",
			result.Sync.OnDisk, result.Sync.Discovered, result.Sync.ExternalMoves, result.Sync.Missing)
		if dryRun {
			fmt.Printf("Dry run: %d action(s) would be applied\n", len(result.Plan.Actions))
			return nil
		}
		if result.Execution != nil {
			fmt.Printf("Applied %d move(s), %d failed; pruned %d empty dir(s)\n",
				result.Execution.Succeeded, result.Execution.Failed, result.PrunedDirs)
		} else {
			fmt.Println("Nothing to do.")
		}
		return nil
	},
}

// correct command
var correctCmd = &cobra.Command{
	Use:   "correct FILE_ID TYPE",
	Short: "Correct a file's classification",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")

		a, err := newApp("Correct")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Correct(args[0], args[1], reason); err != nil {
			return fmt.Errorf("correcting classification: %w", err)
		}
		fmt.Printf("File %s reclassified as %s\n", args[0], args[1])
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status PATH",
	Short: "Show a file's registry record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("FileStatus")
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.FileStatus(args[0])
		if err != nil {
			return err
		}
		if rec == nil {
			fmt.Println("Not tracked.")
			return nil
		}

		fmt.Printf("ID:       %s\n", rec.ID)
		fmt.Printf("State:    %s\n", rec.State)
		fmt.Printf("Location: %s\n", rec.Location())
		fmt.Printf("Size:     %s\n", humanize.Bytes(uint64(rec.SizeBytes)))
		if rec.DocumentType.Valid {
			fmt.Printf("Type:     %s (%.2f, %s)\n",
				rec.DocumentType.String, rec.Confidence.Float64, rec.Method.String)
		}
		if rec.IsDuplicate {
			fmt.Printf("Duplicate of: %s\n", rec.DuplicateOf.String)
		}
		fmt.Printf("Moves:    %d\n", rec.MoveCount)
		return nil
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log FILE_ID",
	Short: "View a file's move history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("MoveHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		events, err := a.MoveHistory(args[0])
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No moves recorded.")
			return nil
		}

		for _, e := range events {
			kind := "moved"
			if e.External {
				kind = "drift"
			}
			fmt.Printf("%s  %-5s  %s -> %s\n",
				e.MovedAt.Format("2006-01-02 15:04:05"), kind, e.FromPath, e.ToPath)
		}
		return nil
	},
}

// metrics command
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show accuracy and stability figures",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Metrics")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Metrics()
		if err != nil {
			return err
		}

		s := report.Stats
		fmt.Printf("Files:      %d tracked, %s total\n", s.TotalFiles, humanize.Bytes(uint64(s.TotalBytes)))
		fmt.Printf("Organized:  %d\n", s.OrganizedFiles)
		fmt.Printf("Duplicates: %d (%s reclaimable)\n", s.DuplicateFiles, humanize.Bytes(uint64(s.DuplicateBytes)))
		fmt.Printf("Missing:    %d, errors: %d, review: %d\n", s.MissingFiles, s.ErrorFiles, s.ReviewFiles)
		fmt.Printf("Stability:        %.2f\n", report.Stability)
		fmt.Printf("Duplication rate: %.2f\n", report.DuplicationRate)
		fmt.Printf("Correction rate:  %.2f\n", report.CorrectionRate)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		for _, r := range runs {
			duration := ""
			if r.FinishedAt.Valid {
				d := r.FinishedAt.Time.Sub(r.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-10s  %s\n",
				r.ID,
				r.Operation,
				r.StartedAt.Format("2006-01-02 15:04:05"),
				r.Status,
				duration,
			)
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)

	// plan subcommands
	planCmd.AddCommand(planListCmd)
	planCmd.AddCommand(planShowCmd)
	planCmd.Flags().String("duplicates", "", "Also plan duplicate handling: archive or delete")
	planListCmd.Flags().IntP("limit", "n", 20, "Maximum number of plans to show")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(dupsCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(rollbackCmd)
	rollbackCmd.Flags().Bool("unlock", false, "Prompt for the key passphrase to restore encrypted archives")
	rootCmd.AddCommand(reorganizeCmd)
	reorganizeCmd.Flags().Bool("dry-run", false, "Report the plan without applying it")
	rootCmd.AddCommand(correctCmd)
	correctCmd.Flags().String("reason", "", "Why the original classification was wrong")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
}
