// Package main provides the interactive terminal drill.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-drill/internal/app"
	"github.com/p-n-ai/pai-drill/internal/content"
	"github.com/p-n-ai/pai-drill/internal/platform/config"
	"github.com/p-n-ai/pai-drill/internal/platform/logger"
	"github.com/p-n-ai/pai-drill/internal/progress"
	"github.com/p-n-ai/pai-drill/internal/session"
)

const (
	defaultCount = 10
	defaultLevel = "n5"
)

func main() {
	rootCmd := newRootCmd(newCLI(os.Stdin, os.Stdout, os.Stderr))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries the terminal streams and the service factory shared by the
// subcommands.
type cli struct {
	in     *bufio.Scanner
	out    io.Writer
	errOut io.Writer
	open   func(ctx context.Context) (*app.Services, error)
}

func newCLI(in io.Reader, out, errOut io.Writer) *cli {
	c := &cli{in: bufio.NewScanner(in), out: out, errOut: errOut}
	c.open = c.openServices
	return c
}

func (c *cli) openServices(ctx context.Context) (*app.Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.Open(ctx, cfg, logger.New(cfg.Log, c.errOut))
}

// drillFlags are shared by the kana, kanji and vocab commands.
type drillFlags struct {
	mode     string
	count    int
	seed     int64
	gameMode string
	report   string
}

func newRootCmd(c *cli) *cobra.Command {
	flags := &drillFlags{}
	rootCmd := &cobra.Command{
		Use:          "drill",
		Short:        "Adaptive Japanese character drills",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.mode, "mode", string(session.ModePick), "answer mode: pick or input")
	rootCmd.PersistentFlags().IntVar(&flags.count, "count", defaultCount, "items per round (0 for all)")
	rootCmd.PersistentFlags().Int64Var(&flags.seed, "seed", 0, "shuffle seed (0 picks one from the clock)")
	rootCmd.PersistentFlags().StringVar(&flags.gameMode, "game-mode", "", "mode reported with each answer, e.g. blitz or gauntlet")
	rootCmd.PersistentFlags().StringVar(&flags.report, "report", "", "write an .xlsx progress report after the round")

	rootCmd.AddCommand(newKanaCmd(c, flags))
	rootCmd.AddCommand(newLevelCmd(c, flags, content.DomainKanji))
	rootCmd.AddCommand(newLevelCmd(c, flags, content.DomainVocabulary))
	rootCmd.AddCommand(newExportCmd(c))
	return rootCmd
}

func newKanaCmd(c *cli, flags *drillFlags) *cobra.Command {
	var groups []int
	cmd := &cobra.Command{
		Use:   "kana",
		Short: "Drill hiragana and katakana readings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			rnd := flags.rand()
			items := content.FlattenKanaGroups(svc.Kana, groups...)
			return play(cmd.Context(), c, svc, flags, rnd, content.DomainKana, items, content.NewKanaAdapter(rnd))
		},
	}
	cmd.Flags().IntSliceVar(&groups, "groups", nil, "kana table rows to include (default all)")
	return cmd
}

func newLevelCmd(c *cli, flags *drillFlags, domain content.Domain) *cobra.Command {
	var level string
	cmd := &cobra.Command{
		Use:   string(domain),
		Short: fmt.Sprintf("Drill %s meanings for one level", domain),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lvl, err := content.ParseLevel(level)
			if err != nil {
				return err
			}
			svc, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx := cmd.Context()
			rnd := flags.rand()
			if domain == content.DomainKanji {
				items, err := svc.Kanji.GetByLevel(ctx, lvl)
				if err != nil {
					return err
				}
				return play(ctx, c, svc, flags, rnd, domain, items, content.NewKanjiAdapter(rnd))
			}
			items, err := svc.Vocab.GetByLevel(ctx, lvl)
			if err != nil {
				return err
			}
			return play(ctx, c, svc, flags, rnd, domain, items, content.NewVocabAdapter(rnd))
		},
	}
	if domain == content.DomainVocabulary {
		cmd.Use = "vocab"
		cmd.Aliases = []string{string(domain)}
	}
	cmd.Flags().StringVar(&level, "level", defaultLevel, "level n5 through n1")
	return cmd
}

func newExportCmd(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the learner's progress to an .xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()
			return writeReport(cmd.Context(), svc, out)
		},
	}
	cmd.Flags().StringVar(&out, "out", "progress.xlsx", "output file")
	return cmd
}

func (f *drillFlags) rand() *rand.Rand {
	seed := f.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// play runs one interactive round. Typing "q" or closing stdin ends it early.
func play[T any](ctx context.Context, c *cli, svc *app.Services, flags *drillFlags, rnd *rand.Rand, domain content.Domain, pool []T, adapter content.Adapter[T]) error {
	mode, err := session.ParseMode(flags.mode)
	if err != nil {
		return err
	}
	if flags.count < 0 {
		return fmt.Errorf("count must be >= 0, got %d", flags.count)
	}

	items := append([]T(nil), pool...)
	rnd.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	if flags.count > 0 && flags.count < len(items) {
		items = items[:flags.count]
	}

	if progress.IsTimedMode(flags.gameMode) {
		if counter, err := svc.Tracker.Timed(domain); err == nil {
			counter.Reset()
		}
	}

	eng, err := session.New(session.Config[T]{
		Items:      items,
		Domain:     domain,
		Mode:       mode,
		Adapter:    adapter,
		Stats:      svc.Stats,
		Difficulty: svc.DifficultyOptions(),
		Pool:       pool,
		GameMode:   flags.gameMode,
		Rand:       rnd,
		Logger:     svc.Logger,
	})
	if err != nil {
		return err
	}

	if eng.Phase() != session.PhaseComplete {
		q, err := eng.Start()
		if err != nil {
			return err
		}
		total := eng.State().QueueLength
		for n := 1; ; n++ {
			printQuestion(c.out, n, total, q)
			line, ok := c.readLine()
			if !ok || line == "q" {
				fmt.Fprintln(c.out, "stopped")
				break
			}
			res, err := eng.Answer(resolveChoice(line, q.Choices))
			if err != nil {
				return err
			}
			if res.Correct {
				fmt.Fprintln(c.out, "correct")
			} else {
				fmt.Fprintf(c.out, "wrong, answer: %s\n", res.Question.CorrectAnswer)
			}
			if res.Complete {
				break
			}
			q = *res.Next
		}
	}

	st := eng.State()
	fmt.Fprintf(c.out, "score: %d/%d\n", st.CorrectCount, st.QueueLength)
	if progress.IsTimedMode(flags.gameMode) {
		if counter, err := svc.Tracker.Timed(domain); err == nil {
			ts := counter.Snapshot()
			fmt.Fprintf(c.out, "%s: best streak %d\n", flags.gameMode, ts.BestStreak)
		}
	}

	if flags.report != "" {
		return writeReport(ctx, svc, flags.report)
	}
	return nil
}

func printQuestion[T any](w io.Writer, n, total int, q session.Question[T]) {
	fmt.Fprintf(w, "[%d/%d] %s\n", n, total, q.Prompt)
	for i, choice := range q.Choices {
		fmt.Fprintf(w, "  %d) %s\n", i+1, choice)
	}
	fmt.Fprint(w, "> ")
}

// resolveChoice maps a 1-based choice number to its text. Anything else is
// passed through as typed.
func resolveChoice(line string, choices []string) string {
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(choices) {
		return choices[n-1]
	}
	return line
}

func (c *cli) readLine() (string, bool) {
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

func writeReport(ctx context.Context, svc *app.Services, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := progress.ExportXLSX(ctx, f, svc.Progress, svc.Config.Progress.LearnerID); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
