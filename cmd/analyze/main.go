// Command analyze inspects soot loop level files and plays them headless.
//
//	analyze [--config-dir configs] analyze [level...]
//	analyze validate <file...>
//	analyze plan --level corridor
//	analyze simulate --level corridor --moves right,right,down
//	analyze journal <ticks-YYYY-MM-DD.jsonl.zst>
//	analyze episodes <episodes.csv>
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/sootloop/game/config"
	"github.com/wricardo/mcp-training/sootloop/game/engine"
	"github.com/wricardo/mcp-training/sootloop/game/telemetry"
)

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.Command {
	levelFlag := &cli.StringFlag{
		Name:  "level",
		Usage: "level name in the config directory, default level when empty",
	}

	return &cli.Command{
		Name:      "analyze",
		Usage:     "inspect soot loop levels and telemetry",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-dir",
				Value:   "configs",
				Usage:   "directory holding level files",
				Sources: cli.EnvVars("CONFIG_DIR"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "analyze",
				Usage:     "print fuel and item heuristics for levels",
				ArgsUsage: "[level...]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runAnalyze(out, cmd.String("config-dir"), cmd.Args().Slice())
				},
			},
			{
				Name:      "validate",
				Usage:     "validate level files against the schema and level rules",
				ArgsUsage: "<file...>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					files := cmd.Args().Slice()
					if len(files) == 0 {
						matches, err := levelFiles(cmd.String("config-dir"))
						if err != nil {
							return err
						}
						files = matches
					}
					return runValidate(out, files)
				},
			},
			{
				Name:  "plan",
				Usage: "plan a greedy candy route for iteration 0",
				Flags: []cli.Flag{levelFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadLevel(cmd.String("config-dir"), cmd.String("level"))
					if err != nil {
						return err
					}
					return runPlan(out, cfg)
				},
			},
			{
				Name:  "simulate",
				Usage: "play a move script for a full loop cycle and compare traces",
				Flags: []cli.Flag{
					levelFlag,
					&cli.StringFlag{
						Name:  "moves",
						Usage: "iteration 0 moves, e.g. right,right,down; planned when empty",
					},
					&cli.StringFlag{
						Name:  "echo-moves",
						Usage: "iteration 1 moves for the live agent, same as --moves when empty",
					},
					&cli.DurationFlag{
						Name:  "dt",
						Value: time.Second / 60,
						Usage: "simulated time per tick",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadLevel(cmd.String("config-dir"), cmd.String("level"))
					if err != nil {
						return err
					}
					return runSimulate(out, cfg, cmd.String("moves"), cmd.String("echo-moves"), cmd.Duration("dt"))
				},
			},
			{
				Name:      "journal",
				Usage:     "print a compressed tick journal",
				ArgsUsage: "<file>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 1 {
						return fmt.Errorf("journal: expected one file")
					}
					return runJournal(out, cmd.Args().First())
				},
			},
			{
				Name:      "episodes",
				Usage:     "print an episode summary log",
				ArgsUsage: "<file>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 1 {
						return fmt.Errorf("episodes: expected one file")
					}
					return runEpisodes(out, cmd.Args().First())
				},
			},
		},
	}
}

func loadLevel(dir, name string) (*engine.LevelConfig, error) {
	mgr, err := config.NewManager(dir)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return mgr.GetDefault(), nil
	}
	return mgr.LoadConfig(name)
}

func levelFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && engine.FormatForPath(entry.Name()) != "" {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

func runAnalyze(out io.Writer, dir string, names []string) error {
	mgr, err := config.NewManager(dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		infos, err := mgr.ListConfigs()
		if err != nil {
			return err
		}
		for _, info := range infos {
			names = append(names, info.ConfigID)
		}
	}

	for _, name := range names {
		fmt.Fprintf(out, "\n=== Analyzing %s ===\n", name)
		cfg, err := mgr.LoadConfig(name)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		writeAnalysis(out, analyzeLevel(cfg))
	}
	return nil
}

func runValidate(out io.Writer, files []string) error {
	invalid := 0
	for _, file := range files {
		result := validateLevelFile(file)
		if result.Valid {
			fmt.Fprintf(out, "✅ %s\n", result.File)
		} else {
			invalid++
			fmt.Fprintf(out, "❌ %s\n", result.File)
		}
		for _, msg := range result.Errors {
			fmt.Fprintf(out, "   %s\n", msg)
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d level files are invalid", invalid, len(files))
	}
	return nil
}

func runPlan(out io.Writer, cfg *engine.LevelConfig) error {
	e, err := engine.NewEngine(cfg)
	if err != nil {
		return err
	}
	snap := e.Snapshot()
	plan := planRoute(snap)

	fmt.Fprintf(out, "Level: %s (%dx%d, seed %d)\n", cfg.Name, cfg.Width, cfg.Height, cfg.Seed)
	fmt.Fprintf(out, "Items: %d candy, %d fuel\n", engine.CountItems(snap, engine.Candy), engine.CountItems(snap, engine.Fuel))
	fmt.Fprintf(out, "Targets: %s\n", joinLocations(plan.Targets))
	fmt.Fprintf(out, "Moves (%d): %s\n", len(plan.Moves), joinDirections(plan.Moves))
	fmt.Fprintf(out, "Candies: %d  Fuel left: %d\n", plan.Candies, plan.FuelLeft)
	return nil
}

func runSimulate(out io.Writer, cfg *engine.LevelConfig, moves, echoMoves string, dt time.Duration) error {
	first, err := parseMoves(moves)
	if err != nil {
		return err
	}
	if len(first) == 0 {
		e, err := engine.NewEngine(cfg)
		if err != nil {
			return err
		}
		first = planRoute(e.Snapshot()).Moves
		fmt.Fprintf(out, "Planned moves: %s\n", joinDirections(first))
	}
	second, err := parseMoves(echoMoves)
	if err != nil {
		return err
	}

	result, err := simulate(cfg, first, second, dt)
	if result != nil {
		writeSimulation(out, result)
	}
	return err
}

func writeSimulation(out io.Writer, result *SimulationResult) {
	fmt.Fprintf(out, "Level: %s\n", result.Level)
	fmt.Fprintf(out, "Recording (%d): %s\n", len(result.Recording), joinOffsets(result.Recording))
	fmt.Fprintf(out, "Recording digest: %016x\n", result.RecordingDigest)

	for _, it := range result.Iterations {
		fmt.Fprintf(out, "\n--- Iteration %d ---\n", it.Iteration)
		s := it.Summary
		fmt.Fprintf(out, "Outcome: %s  Score: %d  Total candies: %d  Fuel left: %d  Moves: %d  Ticks: %d\n",
			s.Outcome, s.Score, s.TotalCandies, s.FuelLeft, s.Moves, it.Ticks)
		fmt.Fprintf(out, "Live trace: %s (digest %016x)\n", joinLocations(it.LiveTrace), it.LiveTrace.Digest())
		if it.EchoTrace != nil {
			fmt.Fprintf(out, "Echo trace: %s (digest %016x)\n", joinLocations(it.EchoTrace), it.EchoTrace.Digest())
		}
		for _, r := range it.Rejections {
			fmt.Fprintf(out, "Rejected: %s\n", r)
		}
	}

	if len(result.Iterations) == 2 {
		fmt.Fprintf(out, "\nEcho retraced iteration 0: %v\n", result.EchoRetraced)
	}
}

func runJournal(out io.Writer, path string) error {
	entries, err := telemetry.ReadJournal(path)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		r := entry.Report
		var parts []string
		if r.Move != nil {
			parts = append(parts, fmt.Sprintf("move loop=%d %s->%s", r.Move.LoopNumber, r.Move.From, r.Move.To))
		}
		if r.Rejection != nil {
			parts = append(parts, "rejected "+string(r.Rejection.Reason))
		}
		for _, get := range r.ItemGets {
			parts = append(parts, fmt.Sprintf("get loop=%d %s", get.LoopNumber, get.Kind))
		}
		if r.Ended {
			parts = append(parts, "ended "+string(r.Outcome))
		}
		fmt.Fprintf(out, "%s %s %s tick=%d %s\n",
			entry.Time.Format(time.RFC3339), entry.SessionID, entry.EpisodeID, r.Tick, strings.Join(parts, ", "))
	}
	fmt.Fprintf(out, "%d entries\n", len(entries))
	return nil
}

func runEpisodes(out io.Writer, path string) error {
	records, err := telemetry.ReadEpisodes(path)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tEPISODE\tITER\tOUTCOME\tSCORE\tCANDIES\tFUEL\tMOVES\tTICKS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%d\t%d\t%d\t%d\t%d\n",
			r.SessionID, r.Episode, r.Iteration, r.Outcome, r.Score, r.TotalCandies, r.FuelLeft, r.Moves, r.Ticks)
	}
	return tw.Flush()
}

func joinLocations(locs []engine.GridLocation) string {
	parts := make([]string, len(locs))
	for i, l := range locs {
		parts[i] = l.String()
	}
	return strings.Join(parts, " ")
}

func joinDirections(dirs []engine.Direction) string {
	parts := make([]string, len(dirs))
	for i, d := range dirs {
		parts[i] = string(d)
	}
	return strings.Join(parts, ",")
}

func joinOffsets(offsets []engine.Offset) string {
	parts := make([]string, len(offsets))
	for i, o := range offsets {
		parts[i] = o.String()
	}
	return strings.Join(parts, ",")
}
