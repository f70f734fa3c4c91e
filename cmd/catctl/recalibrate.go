package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/catengine/cat/internal/domain"
	"github.com/catengine/cat/internal/infra/dsa"
)

func init() {
	rootCmd.AddCommand(recalibrateCmd)
}

// recalibrateCmd refreshes every item's historical_correct_rate from its
// accumulated response log. Items are processed oldest-exposure-first via
// a priority queue, so a backlog of rarely-administered items (which drift
// out of date slowest but also get recalibrated least often) doesn't get
// starved behind a constant stream of freshly-exposed ones.
var recalibrateCmd = &cobra.Command{
	Use:   "recalibrate",
	Short: "Refresh every item's empirical correct rate from its response log",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		cellIDs, err := db.DistinctCellIDs(ctx)
		if err != nil {
			return err
		}

		pq := dsa.NewPriorityQueue(dsa.DefaultPriorityQueueConfig())
		items := map[string]domain.Item{}
		for _, cellID := range cellIDs {
			cellItems, err := db.ItemsByCell(ctx, cellID, domain.ItemFilter{ActiveOnly: true})
			if err != nil {
				return err
			}
			for _, it := range cellItems {
				items[it.ID] = it
				submitted := time.Now()
				if it.LastUsed != nil {
					submitted = *it.LastUsed
				}
				// Priority 0 for items never exposed (most urgent to check),
				// 1 for everything else; age-based boosting then favors the
				// longest-untouched items within each tier.
				priority := 1
				if it.LastUsed == nil {
					priority = 0
				}
				pq.Push(dsa.HeapItem{Key: it.ID, Priority: priority, SubmittedAt: submitted})
			}
		}

		updated := 0
		for {
			job, ok := pq.Pop()
			if !ok {
				break
			}
			rate, n, err := db.ItemCorrectRate(ctx, job.Key)
			if err != nil {
				return err
			}
			if n == 0 {
				continue
			}
			if err := db.UpdateHistoricalCorrectRate(ctx, job.Key, rate); err != nil {
				return err
			}
			updated++
			fmt.Fprintf(cmd.OutOrStdout(), "item=%s n=%d correct_rate=%.3f\n", job.Key, n, rate)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "recalibrated %d/%d items\n", updated, len(items))
		return nil
	},
}
