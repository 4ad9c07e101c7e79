package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/julesqueue/julesq/internal/batch"
	"github.com/julesqueue/julesq/internal/commentcheck"
	"github.com/julesqueue/julesq/internal/config"
	"github.com/julesqueue/julesq/internal/domain"
	"github.com/julesqueue/julesq/internal/github"
	"github.com/julesqueue/julesq/internal/notify"
	"github.com/julesqueue/julesq/internal/scheduler"
	"github.com/julesqueue/julesq/internal/sweep"
	"github.com/julesqueue/julesq/internal/taskstore"
	"github.com/julesqueue/julesq/internal/webhook"
	"github.com/julesqueue/julesq/internal/workflow"
	"github.com/julesqueue/julesq/tui"
	"github.com/julesqueue/julesq/web/api"
)

var (
	listFlagged bool
	listLimit   int
	servePort   int
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the queue daemon: background jobs, webhook receiver and API",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Retry all flagged tasks once",
		RunE:  runSweep,
	}
	rootCmd.AddCommand(sweepCmd)

	checkCmd := &cobra.Command{
		Use:   "check TASK_ID",
		Short: "Run a comment check for one task and act on the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}
	rootCmd.AddCommand(checkCmd)

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule comment checks for tasks that have none",
		RunE:  runSchedule,
	}
	rootCmd.AddCommand(scheduleCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue statistics",
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked tasks",
		RunE:  runList,
	}
	listCmd.Flags().BoolVar(&listFlagged, "flagged", false, "show only tasks flagged for retry")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum tasks to show")
	rootCmd.AddCommand(listCmd)

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete old unflagged task records",
		RunE:  runCleanup,
	}
	rootCmd.AddCommand(cleanupCmd)

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the queue dashboard",
		RunE:  runTUI,
	}
	rootCmd.AddCommand(tuiCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

// app bundles the wired components for a command invocation.
type app struct {
	cfg     *config.Config
	live    *config.Live
	store   *taskstore.Store
	gh      github.Client
	sweeper *sweep.Runner
	sched   *scheduler.Scheduler
	deps    batch.Deps
	hook    *webhook.Processor
}

func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := taskstore.New(config.ExpandPath(cfg.General.DatabasePath))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	gh := github.NewCLIClient(cfg.GitHub.GhPath)

	var notifier notify.Notifier
	if cfg.Notifications.SlackWebhook != "" {
		notifier = notify.NewSlack(cfg.Notifications.SlackWebhook)
	}

	sched := scheduler.New(store, cfg.Checks)
	a := &app{
		cfg:     cfg,
		live:    config.NewLive(cfg),
		store:   store,
		gh:      gh,
		sweeper: sweep.New(store, gh, cfg.Labels, notifier),
		sched:   sched,
		hook:    webhook.New(store, sched, cfg.Labels),
	}
	a.deps = batch.Deps{
		Store:     store,
		Sweeper:   a.sweeper,
		Scheduler: sched,
		Engine:    commentcheck.New(gh, cfg),
		Workflow:  workflow.New(store, gh, cfg.Labels),
		Config:    a.live,
	}
	return a, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		log.Printf("closing database: %v", err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if servePort != 0 {
		a.cfg.Web.Port = servePort
	}

	runner, err := batch.NewRunner(batch.StandardJobs(a.deps))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Start(ctx)

	// Reload thresholds and cleanup settings on config edits. Patterns
	// and job cadence are bound at startup and need a restart.
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}
	watcher, err := config.NewWatcher(cfgPath, func(cfg *config.Config) {
		a.live.Replace(cfg)
		log.Printf("config reloaded from %s", cfgPath)
	})
	if err != nil {
		log.Printf("config watching disabled: %v", err)
	} else {
		go watcher.Start()
		defer watcher.Stop()
	}

	server := api.NewServer(a.store, a.sweeper, a.hook, a.deps, a.cfg.Web)
	fmt.Printf("Listening on http://%s:%d\n", a.cfg.Web.Host, a.cfg.Web.Port)
	return server.Start()
}

func runSweep(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := a.sweeper.Run(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Sweep finished: %d attempted, %d successful, %d failed, %d skipped\n",
		stats.Attempted, stats.Successful, stats.Failed, stats.Skipped)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	taskID := args[0]
	if _, err := a.store.GetTask(taskID); err != nil {
		return err
	}

	if err := a.deps.ProcessCheck(context.Background(), taskID); err != nil {
		return err
	}

	task, err := a.store.GetTask(taskID)
	if err != nil {
		return err
	}
	fmt.Printf("Checked %s: flagged=%v retries=%d\n", task.Slug(), task.FlaggedForRetry, task.RetryCount)
	return nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	scheduled, err := a.sched.ScheduleBatch(time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("Scheduled comment checks for %d tasks\n", scheduled)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := a.store.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("Tasks: %d tracked | %d flagged | %d pending checks\n",
		stats.TotalTasks, stats.FlaggedTasks, stats.PendingChecks)
	fmt.Printf("Retries: max %d | avg %.1f\n", stats.MaxRetryCount, stats.AvgRetryCount)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	var tasks []*domain.Task
	if listFlagged {
		tasks, err = a.store.FlaggedTasks()
	} else {
		tasks, err = a.store.ListTasks(listLimit)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tISSUE\tFLAGGED\tRETRIES\tLAST RETRY")
	for _, t := range tasks {
		lastRetry := "-"
		if t.LastRetryAt != nil {
			lastRetry = t.LastRetryAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%v\t%d\t%s\n",
			t.ID, t.Slug(), t.FlaggedForRetry, t.RetryCount, lastRetry)
	}
	w.Flush()

	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	cutoff := time.Now().AddDate(0, 0, -a.cfg.Jobs.CleanupAfterDays)
	deleted, err := a.store.CleanupOldTasks(cutoff)
	if err != nil {
		return err
	}

	fmt.Printf("Deleted %d task records older than %d days\n", deleted, a.cfg.Jobs.CleanupAfterDays)
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	p := tea.NewProgram(tui.NewModel(a.store), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
