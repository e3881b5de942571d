// Package main provides tracking-store maintenance utilities: projection
// rebuilds, fact-log integrity checks, and tracker reconciliation runs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tracklet/tracklet/internal/domain/fact"
	platformcmd "github.com/tracklet/tracklet/internal/platform/cmd"
	"github.com/tracklet/tracklet/internal/platform/config"
	"github.com/tracklet/tracklet/internal/reconcile"
	"github.com/tracklet/tracklet/internal/service"
	"github.com/tracklet/tracklet/internal/storage/sqlite"
	"github.com/tracklet/tracklet/internal/tracker/github"
)

type trackerConfig struct {
	DBPath      string `env:"TRACKLET_DB_PATH" envDefault:"data/tracklet.db"`
	GitHubOwner string `env:"TRACKLET_GITHUB_OWNER"`
	GitHubRepo  string `env:"TRACKLET_GITHUB_REPO"`
	GitHubToken string `env:"TRACKLET_GITHUB_TOKEN"`
	Policy      string `env:"TRACKLET_RECONCILE_POLICY" envDefault:"manual"`
}

func main() {
	var cfg trackerConfig
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		config.Exitf("tracker config: %v", err)
	}

	var rebuild bool
	var verify bool
	var reconcileRun bool
	var projectID string
	var jsonOutput bool

	flag.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to sqlite database")
	flag.BoolVar(&rebuild, "rebuild", false, "re-sync every projection from the fact log")
	flag.BoolVar(&verify, "verify", false, "check fact version contiguity per aggregate")
	flag.BoolVar(&reconcileRun, "reconcile", false, "reconcile a project's tasks against the configured tracker")
	flag.StringVar(&projectID, "project-id", "", "project to reconcile (required with -reconcile)")
	flag.StringVar(&cfg.Policy, "policy", cfg.Policy, "reconcile policy: manual, local-wins, remote-wins")
	flag.BoolVar(&jsonOutput, "json", false, "output JSON reports")
	flag.Parse()

	if !rebuild && !verify && !reconcileRun {
		config.Exitf("nothing to do: pass -rebuild, -verify, or -reconcile")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	err := platformcmd.RunWithTelemetry(ctx, "tracker", func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		if rebuild {
			report, err := rebuildProjections(ctx, store)
			if err != nil {
				return err
			}
			printReport(jsonOutput, "rebuild", report)
		}
		if verify {
			report, err := verifyFactLog(ctx, store)
			if err != nil {
				return err
			}
			printReport(jsonOutput, "verify", report)
			if len(report.Gaps) > 0 {
				return fmt.Errorf("fact log has %d gapped aggregates", len(report.Gaps))
			}
		}
		if reconcileRun {
			if projectID == "" {
				return fmt.Errorf("-reconcile requires -project-id")
			}
			report, err := reconcileProject(ctx, store, cfg, projectID)
			if err != nil {
				return err
			}
			printReport(jsonOutput, "reconcile", report)
		}
		return nil
	})
	if err != nil {
		config.Exitf("tracker: %v", err)
	}
}

func printReport(jsonOutput bool, name string, report any) {
	if jsonOutput {
		encoded, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			config.Exitf("encode %s report: %v", name, err)
		}
		fmt.Println(string(encoded))
		return
	}
	fmt.Printf("%s: %+v\n", name, report)
}

func reconcileProject(ctx context.Context, store *sqlite.Store, cfg trackerConfig, projectID string) (*reconcileReport, error) {
	policy, err := reconcile.ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	tracker := github.NewClient(cfg.GitHubOwner, cfg.GitHubRepo, cfg.GitHubToken)
	engine := reconcile.NewEngine(store, store, tracker, policy)

	batch, err := engine.ReconcileProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	report := &reconcileReport{ProjectID: projectID, Policy: string(policy), Total: len(batch.Items)}
	for _, item := range batch.Items {
		switch {
		case item.Err != nil:
			report.Failed++
		case item.Verdict == reconcile.Conflict:
			report.Conflicts++
		case item.Applied:
			report.Applied++
		default:
			report.Unchanged++
		}
	}
	return report, nil
}

type reconcileReport struct {
	ProjectID string
	Policy    string
	Total     int
	Applied   int
	Unchanged int
	Conflicts int
	Failed    int
}

type rebuildReport struct {
	Tasks    int
	Sprints  int
	Projects int
}

// rebuildProjections re-materializes every aggregate's projection row from
// the fact log. Rows are disposable; this is the recovery path after
// schema changes or suspected drift.
func rebuildProjections(ctx context.Context, store *sqlite.Store) (*rebuildReport, error) {
	tasks := service.NewTaskService(store, store)
	sprints := service.NewSprintService(store, store, store)
	projects := service.NewProjectService(store, store)

	report := &rebuildReport{}

	taskIDs, err := store.ListAggregateIDs(ctx, fact.AggregateTask)
	if err != nil {
		return nil, err
	}
	for _, id := range taskIDs {
		if _, err := tasks.Sync(ctx, id); err != nil {
			return nil, fmt.Errorf("rebuild task %s: %w", id, err)
		}
		report.Tasks++
	}

	sprintIDs, err := store.ListAggregateIDs(ctx, fact.AggregateSprint)
	if err != nil {
		return nil, err
	}
	for _, id := range sprintIDs {
		if _, err := sprints.Sync(ctx, id); err != nil {
			return nil, fmt.Errorf("rebuild sprint %s: %w", id, err)
		}
		report.Sprints++
	}

	projectIDs, err := store.ListAggregateIDs(ctx, fact.AggregateProject)
	if err != nil {
		return nil, err
	}
	for _, id := range projectIDs {
		if _, err := projects.Sync(ctx, id); err != nil {
			return nil, fmt.Errorf("rebuild project %s: %w", id, err)
		}
		report.Projects++
	}

	return report, nil
}

type versionGap struct {
	AggregateKind string
	AggregateID   string
	Expected      uint64
	Got           uint64
}

type verifyReport struct {
	Aggregates int
	Facts      int
	Gaps       []versionGap
}

// verifyFactLog checks that every aggregate's versions run 1..N without
// gaps or repeats.
func verifyFactLog(ctx context.Context, store *sqlite.Store) (*verifyReport, error) {
	report := &verifyReport{}

	for _, kind := range []fact.AggregateKind{fact.AggregateTask, fact.AggregateSprint, fact.AggregateProject} {
		ids, err := store.ListAggregateIDs(ctx, kind)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			report.Aggregates++
			var expected uint64
			for {
				page, err := store.ListFacts(ctx, kind, id, expected, 200)
				if err != nil {
					return nil, err
				}
				if len(page) == 0 {
					break
				}
				for _, f := range page {
					expected++
					report.Facts++
					if f.Version != expected {
						report.Gaps = append(report.Gaps, versionGap{
							AggregateKind: string(kind),
							AggregateID:   id,
							Expected:      expected,
							Got:           f.Version,
						})
						expected = f.Version
					}
				}
				if len(page) < 200 {
					break
				}
			}
		}
	}
	return report, nil
}
