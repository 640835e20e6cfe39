// Package cli implements the turn-memory CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/turn-memory/internal/config"
	"github.com/rcliao/turn-memory/internal/memory"
	"github.com/rcliao/turn-memory/internal/metrics"
	"github.com/rcliao/turn-memory/internal/model"
	"github.com/rcliao/turn-memory/internal/store"
)

var (
	dbPath      string
	configPath  string
	subjectFlag string
	verbose     bool

	cfg    *config.Config
	logger *slog.Logger
)

var errNoEmbedder = errors.New("no embedding provider configured (set semantic.embedding.provider or TURN_MEMORY_EMBED_PROVIDER)")

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "turn-memory",
	Short: "Rolling memory of conversation turns",
	Long: "Keeps a short-horizon buffer and a long-horizon store of structured turn records per subject, " +
		"and ranks stored history by relevance to a new turn. SQLite-backed, single binary.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = newLogger(cmd.ErrOrStderr(), cfg.Log)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $TURN_MEMORY_DB or ~/.turn-memory/memory.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $TURN_MEMORY_CONFIG or ~/.turn-memory/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&subjectFlag, "subject", "s", "default", "Subject whose memory to use")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

func newLogger(w io.Writer, lc config.LogConfig) (*slog.Logger, error) {
	level, err := lc.SlogLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if cfg != nil && cfg.DBPath != "" {
		return cfg.DBPath
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".turn-memory", "memory.db")
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(getDBPath())
}

func memoryOptions() memory.Options {
	opts := cfg.MemoryOptions()
	opts.Logger = logger
	return opts
}

// loadSnapshot adapts the store to memory.LoadFunc: a missing snapshot is
// an empty memory, not an error.
func loadSnapshot(s store.Store) memory.LoadFunc {
	return func(ctx context.Context, subject string) (*model.Snapshot, error) {
		snap, err := s.LoadSnapshot(ctx, subject)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return snap, err
	}
}

// openMemory restores subject's memory from its stored snapshot.
func openMemory(ctx context.Context, s store.Store, subject string) (*memory.Memory, error) {
	m := memory.New(subject, memoryOptions())
	snap, err := loadSnapshot(s)(ctx, subject)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		m.Restore(*snap)
	}
	return m, nil
}

// readRecord decodes a record from the first argument, or stdin when there
// is none or it is "-". A missing timestamp is filled with the current time.
func readRecord(cmd *cobra.Command, args []string) (model.Record, error) {
	var data []byte
	if len(args) > 0 && args[0] != "-" {
		data = []byte(strings.Join(args, " "))
	} else {
		var err error
		data, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return model.Record{}, fmt.Errorf("read stdin: %w", err)
		}
	}
	var r model.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return model.Record{}, fmt.Errorf("parse record: %w", err)
	}
	if r.Timestamp == "" {
		r.Timestamp = model.FormatTimestamp(time.Now())
	}
	return r, nil
}

// historyRecords unwraps stored records, dropping any that share current's
// timestamp and raw input so a turn is never ranked against itself.
func historyRecords(stored []model.StoredRecord, current model.Record) []model.Record {
	out := make([]model.Record, 0, len(stored))
	for _, sr := range stored {
		if sr.Record.Timestamp == current.Timestamp && sr.Record.RawInput == current.RawInput {
			continue
		}
		out = append(out, sr.Record)
	}
	return out
}

func printJSON(cmd *cobra.Command, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}

func newRecorder() *metrics.Recorder {
	rec, err := metrics.NewRecorder(nil)
	if err != nil {
		exitErr("create recorder", err)
	}
	return rec
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
