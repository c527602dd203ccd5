// cmd/analytics/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/config"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/export"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/ingest"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/pipeline"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/repository/postgres"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/service"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/snapshot"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/storage"
	"github.com/udaykumar0515/intellistock-ai-for-good/pkg/logger"
	"github.com/urfave/cli/v2"
)

type runtimeKey struct{}

// runtime is the wiring shared by every command: one database, one
// refresh graph, and the snapshots primed from the persisted tables.
type runtime struct {
	cfg       *config.Config
	db        *postgres.DB
	env       *pipeline.Env
	sched     *pipeline.Scheduler
	ingestor  *ingest.Ingestor
	snapshots *snapshot.Store
}

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func initRuntime(c *cli.Context) error {
	cfg := config.Load()
	logger.SetLevel(c.String("log-level"))

	db, err := postgres.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(c.Context); err != nil {
		db.Close()
		return err
	}

	repos := postgres.NewRepositories(db)
	logs := pipeline.NewChangeLogs()
	snaps := snapshot.NewStore()
	env := &pipeline.Env{
		Repos:     repos,
		Snapshots: snaps,
		Logs:      logs,
		Workers:   cfg.Scheduler.WorkerCount,
	}
	if cfg.Storage.Enabled {
		client, err := storage.NewMinioClient(c.Context, cfg.Storage)
		if err != nil {
			db.Close()
			return err
		}
		env.Archiver = storage.NewArchiver(client, cfg.Storage.Prefix)
	}

	sched := pipeline.NewScheduler(env)
	for _, spec := range pipeline.DefaultNodes(cfg, logs) {
		if err := sched.Register(spec); err != nil {
			db.Close()
			return err
		}
	}
	if err := sched.Build(); err != nil {
		db.Close()
		return err
	}
	if err := pipeline.Prime(c.Context, env); err != nil {
		db.Close()
		return err
	}

	rt := &runtime{
		cfg:       cfg,
		db:        db,
		env:       env,
		sched:     sched,
		ingestor:  ingest.NewIngestor(repos.Ledger, logs.Ledger),
		snapshots: snaps,
	}
	c.Context = context.WithValue(c.Context, runtimeKey{}, rt)
	return nil
}

func closeRuntime(c *cli.Context) error {
	if rt, ok := c.Context.Value(runtimeKey{}).(*runtime); ok && rt != nil {
		return rt.db.Close()
	}
	return nil
}

func runtimeFrom(c *cli.Context) *runtime {
	return c.Context.Value(runtimeKey{}).(*runtime)
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "analytics",
		Usage: "Operate the inventory analytics pipeline",
		Flags: []cli.Flag{
			newDBURLFlag(),
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: initRuntime,
		After:  closeRuntime,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Append CSV or XLSX ledger sheets",
				ArgsUsage: "FILE...",
				Action:    runIngest,
			},
			{
				Name:  "import",
				Usage: "Ingest every ledger sheet under an object storage prefix",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "prefix",
						Usage: "Object key prefix (defaults to APP_INGEST_PREFIX)",
					},
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Read objects from a local directory instead of object storage",
					},
				},
				Action: runImport,
			},
			{
				Name:  "refresh",
				Usage: "Run refresh tasks once, in dependency order",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "task",
						Usage: "Task to run (repeatable); defaults to every task except cleanup",
					},
				},
				Action: runRefresh,
			},
			{
				Name:  "tasks",
				Usage: "Show per-task performance from the execution log",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "days",
						Value: 7,
					},
				},
				Action: runTasks,
			},
			{
				Name:  "export",
				Usage: "Write reorder recommendations to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "out",
						Usage:    "Output path; .csv or .xlsx",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "exclude-ordered",
						Usage: "Skip groups ordered today",
					},
				},
				Action: runExport,
			},
			{
				Name:   "cleanup",
				Usage:  "Archive and delete rows past their retention",
				Action: runCleanup,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runIngest(c *cli.Context) error {
	rt := runtimeFrom(c)
	if c.NArg() == 0 {
		return cli.Exit("at least one ledger file is required", 1)
	}
	for _, path := range c.Args().Slice() {
		start := time.Now()
		res, err := rt.ingestor.IngestFile(c.Context, path)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		logger.Log.Info().
			Str("file", path).
			Int("read", res.Read).
			Int("inserted", res.Inserted).
			Int("duplicates", res.Duplicates).
			Dur("duration", time.Since(start)).
			Msg("ledger ingested")
	}
	return nil
}

func runImport(c *cli.Context) error {
	rt := runtimeFrom(c)

	var store storage.ObjectStorage
	switch {
	case c.String("dir") != "":
		dir, err := storage.NewDirStorage(c.String("dir"))
		if err != nil {
			return err
		}
		store = dir
	case rt.cfg.Storage.Enabled:
		client, err := storage.NewMinioClient(c.Context, rt.cfg.Storage)
		if err != nil {
			return err
		}
		store = client
	default:
		return cli.Exit("object storage is disabled; pass --dir or set STORAGE_ENABLED", 1)
	}

	prefix := c.String("prefix")
	if prefix == "" {
		prefix = rt.cfg.App.IngestPrefix
	}
	results, err := ingest.NewObjectLoader(store, rt.ingestor, "").Load(c.Context, prefix)
	for _, res := range results {
		logger.Log.Info().Str("object", res.Source).Int("inserted", res.Inserted).Int("duplicates", res.Duplicates).Msg("object ingested")
	}
	return err
}

func runRefresh(c *cli.Context) error {
	rt := runtimeFrom(c)

	names := c.StringSlice("task")
	if len(names) == 0 {
		for _, st := range rt.sched.Status() {
			if st.Name != pipeline.TaskCleanup {
				names = append(names, st.Name)
			}
		}
	}
	requested := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if err := rt.sched.Trigger(name); err != nil {
			return err
		}
		requested[name] = true
	}

	outcomes, err := rt.sched.Tick(c.Context)
	if err != nil {
		return err
	}
	var failed int
	for _, o := range outcomes {
		if !o.Ran {
			if requested[o.Task] {
				logger.Log.Warn().Str("task", o.Task).Str("reason", o.Skipped).Msg("requested task skipped")
			}
			continue
		}
		if !o.Success {
			failed++
			logger.Log.Error().Str("task", o.Task).Str("error", o.Error).Msg("task failed")
			continue
		}
		logger.Log.Info().Str("task", o.Task).Int("records", o.Records).Msg("task finished")
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d task(s) failed", failed), 1)
	}
	return nil
}

func runTasks(c *cli.Context) error {
	rt := runtimeFrom(c)
	perf, err := service.NewTaskService(rt.sched, rt.env.Repos.TaskLogs, rt.env.Logs, nil).Performance(c.Context, c.Int("days"))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(perf)
}

func runExport(c *cli.Context) error {
	rt := runtimeFrom(c)
	query := service.NewQueryService(rt.snapshots, rt.env.Repos, nil, nil)

	page, err := query.Reorder(c.Context, domain.AnalyticsFilter{ExcludeOrdered: c.Bool("exclude-ordered")})
	if err != nil {
		return err
	}

	out := c.String("out")
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	defer f.Close()

	if strings.HasSuffix(strings.ToLower(out), ".xlsx") {
		err = export.WriteXLSX(f, page.Rows)
	} else {
		err = export.WriteCSV(f, page.Rows)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	logger.Log.Info().Str("file", out).Int("rows", len(page.Rows)).Msg("reorder recommendations exported")
	return nil
}

func runCleanup(c *cli.Context) error {
	rt := runtimeFrom(c)
	retention := pipeline.Retention{
		SummaryDays: rt.cfg.Retention.SummaryDays,
		AlertDays:   rt.cfg.Retention.AlertDays,
		LogDays:     rt.cfg.Retention.LogDays,
	}
	n, err := pipeline.NewCleanupTask(retention).Run(c.Context, rt.env)
	logger.Log.Info().Int("deleted", n).Msg("cleanup finished")
	return err
}
