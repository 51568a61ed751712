package commands

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentrun-ai/agentrun/internal/config"
	"github.com/agentrun-ai/agentrun/internal/history"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived run reports",
	RunE:  runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show one archived run report (latest when no ID is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to list")
	historyCmd.PersistentFlags().BoolVar(&historyJSON, "json", false, "Print records as JSON")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func historyStore() *history.Store {
	return history.New(filepath.Join(config.GetPaths().Data, "runs"))
}

func runHistory(cmd *cobra.Command, args []string) error {
	store := historyStore()

	shown := 0
	return store.Scan(func(rec *history.Record) error {
		if shown >= historyLimit {
			return nil
		}
		shown++

		if historyJSON {
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		status := "no result"
		if rec.Result != nil {
			if rec.Result.Status {
				status = "ok"
			} else {
				status = "failed"
			}
		}
		task := rec.Task
		if runes := []rune(task); len(runes) > 60 {
			task = string(runes[:57]) + "..."
		}
		fmt.Printf("%s  %-9s %6dms  %s\n", rec.RunID, status, rec.DurationMS, task)
		return nil
	})
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store := historyStore()

	var rec *history.Record
	var err error
	if len(args) == 1 {
		rec, err = store.Get(args[0])
	} else {
		rec, err = store.Latest()
	}
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
