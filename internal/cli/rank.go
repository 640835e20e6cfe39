package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/turn-memory/internal/embedding"
	"github.com/rcliao/turn-memory/internal/relevance"
	"github.com/rcliao/turn-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rank [json]",
		Short: "Rank stored history by relevance to a turn",
		Long: "Gate the subject's stored history by keyword overlap and time proximity, then rank the " +
			"candidates by location, time, topic and intent. With --semantic the survivors are re-scored " +
			"by the configured embedding provider.",
		Args: cobra.MaximumNArgs(1),
		Run:  runRank,
	}

	cmd.Flags().IntP("top", "k", 5, "Max results (0 for all candidates)")
	cmd.Flags().IntP("limit", "l", 0, "Only consider the most recent N stored records (0 for all)")
	cmd.Flags().Bool("semantic", false, "Re-score candidates with the embedding provider")

	RootCmd.AddCommand(cmd)
}

func runRank(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	top, _ := cmd.Flags().GetInt("top")
	limit, _ := cmd.Flags().GetInt("limit")
	semantic, _ := cmd.Flags().GetBool("semantic")

	current, err := readRecord(cmd, args)
	if err != nil {
		exitErr("rank", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stored, err := s.History(ctx, store.HistoryParams{Subject: subjectFlag, Limit: limit})
	if err != nil {
		exitErr("history", err)
	}

	rec := newRecorder()
	r := &relevance.Ranker{
		Gate:        relevance.NewGate(memoryOptions().Gate, logger, rec),
		Prioritizer: relevance.NewPrioritizer(time.Now, rec),
	}
	ranked := r.RankHistory(current, historyRecords(stored, current), 0)

	if semantic {
		e, err := embedding.New(cfg.Semantic.Embedding)
		if err != nil {
			exitErr("embedding provider", err)
		}
		if e == nil {
			exitErr("semantic", errNoEmbedder)
		}
		c, err := embedding.NewComparer(e, 0)
		if err != nil {
			exitErr("semantic", err)
		}
		refiner := relevance.NewRefiner(c, time.Duration(cfg.Semantic.Timeout), logger, rec)
		ranked = refiner.Refine(ctx, current, ranked, top)
	} else if top > 0 && len(ranked) > top {
		ranked = ranked[:top]
	}

	printJSON(cmd, ranked)
}
