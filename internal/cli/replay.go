package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/turn-memory/internal/memory"
	"github.com/rcliao/turn-memory/internal/metrics"
	"github.com/rcliao/turn-memory/internal/model"
	"github.com/rcliao/turn-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Feed a JSONL log of turns through memory",
		Long: "Read lines of {\"subject\": ..., \"record\": {...}} from a file or stdin. Turns are stored and " +
			"recorded in order per subject; subjects are processed in parallel.",
		Args: cobra.MaximumNArgs(1),
		Run:  runReplay,
	}

	cmd.Flags().IntP("jobs", "j", 4, "Subjects processed in parallel")

	RootCmd.AddCommand(cmd)
}

type replayLine struct {
	Subject string       `json:"subject"`
	Record  model.Record `json:"record"`
}

type replayResult struct {
	Subject  string `json:"subject"`
	Turns    int    `json:"turns"`
	Promoted int64  `json:"promoted"`
	Buffered int    `json:"buffered"`
}

func runReplay(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	jobs, _ := cmd.Flags().GetInt("jobs")

	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			exitErr("open log", err)
		}
		defer f.Close()
		in = f
	}

	order, bySubject, err := readReplay(in)
	if err != nil {
		exitErr("read log", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	results, err := replay(ctx, s, order, bySubject, jobs)
	if err != nil {
		exitErr("replay", err)
	}
	printJSON(cmd, results)
}

// readReplay groups lines by subject, keeping file order within a subject
// and first-seen order across subjects.
func readReplay(r io.Reader) ([]string, map[string][]model.Record, error) {
	var order []string
	bySubject := map[string][]model.Record{}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var l replayLine
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		if l.Subject == "" {
			l.Subject = subjectFlag
		}
		if _, ok := bySubject[l.Subject]; !ok {
			order = append(order, l.Subject)
		}
		bySubject[l.Subject] = append(bySubject[l.Subject], l.Record)
	}
	return order, bySubject, sc.Err()
}

func replay(ctx context.Context, s *store.SQLiteStore, order []string, bySubject map[string][]model.Record, jobs int) ([]replayResult, error) {
	saveCtx := context.WithoutCancel(ctx)
	save := func(m *memory.Memory) {
		if err := s.SaveSnapshot(saveCtx, m.Snapshot()); err != nil {
			logger.Error("save evicted snapshot", "subject", m.Subject(), "error", err)
		}
	}
	reg, err := memory.NewRegistry(cfg.Registry.Size, memoryOptions(), loadSnapshot(s), save)
	if err != nil {
		return nil, err
	}

	results := make([]replayResult, len(order))

	g, gctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, subject := range order {
		g.Go(func() error {
			m, err := reg.Get(gctx, subject)
			if err != nil {
				return err
			}
			before := m.Stats().Counters[metrics.Promoted]
			for _, r := range bySubject[subject] {
				if err := gctx.Err(); err != nil {
					return err
				}
				if _, err := s.AppendRecord(gctx, store.AppendParams{Subject: subject, Record: r}); err != nil {
					return fmt.Errorf("subject %s: %w", subject, err)
				}
				m.RecordTurn(r)
			}
			if err := s.SaveSnapshot(saveCtx, m.Snapshot()); err != nil {
				return fmt.Errorf("subject %s: %w", subject, err)
			}
			st := m.Stats()
			results[i] = replayResult{
				Subject:  subject,
				Turns:    len(bySubject[subject]),
				Promoted: st.Counters[metrics.Promoted] - before,
				Buffered: st.ShortTermSize,
			}
			logger.Debug("replayed subject", "subject", subject, "turns", len(bySubject[subject]))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
