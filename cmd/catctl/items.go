package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/catengine/cat/internal/domain"
)

func init() {
	rootCmd.AddCommand(itemsCmd)
	itemsCmd.AddCommand(itemsSeedCmd)
	itemsCmd.AddCommand(itemsListCmd)
}

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Inspect and seed the item bank",
}

// seedItem mirrors domain.Item's calibration fields for JSON seed files;
// ExposureCount/LastUsed start at zero and are never seeded.
type seedItem struct {
	ID          string  `json:"id"`
	CellID      string  `json:"cell_id"`
	A           float64 `json:"a"`
	B           float64 `json:"b"`
	C           float64 `json:"c"`
	Model       string  `json:"model"`
	MaxExposure int     `json:"max_exposure"`
}

var itemsSeedCmd = &cobra.Command{
	Use:   "seed FILE",
	Short: "Load a JSON array of calibrated items into the bank",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var seeds []seedItem
		if err := json.Unmarshal(data, &seeds); err != nil {
			return fmt.Errorf("parsing %s: %w", args[0], err)
		}

		_, db, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		for _, s := range seeds {
			item := domain.Item{
				ID: s.ID, CellID: s.CellID, A: s.A, B: s.B, C: s.C,
				Model: domain.ModelTag(s.Model), MaxExposure: s.MaxExposure, Active: true,
			}
			if err := db.InsertItem(ctx, item); err != nil {
				return fmt.Errorf("inserting %s: %w", s.ID, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d items\n", len(seeds))
		return nil
	},
}

var itemsListCmd = &cobra.Command{
	Use:   "list CELL_ID",
	Short: "List active items in a cell",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		items, err := db.ItemsByCell(context.Background(), args[0], domain.ItemFilter{ActiveOnly: true})
		if err != nil {
			return err
		}
		for _, it := range items {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\ta=%.3f b=%.3f c=%.3f exposures=%d\n", it.ID, it.A, it.B, it.C, it.ExposureCount)
		}
		return nil
	},
}
