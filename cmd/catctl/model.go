package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/catengine/cat/internal/linucb"
)

func init() {
	rootCmd.AddCommand(modelCmd)
	modelCmd.AddCommand(modelDumpCmd)
	modelCmd.AddCommand(modelVerifyCmd)
}

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Inspect a per-item LinUCB model blob",
}

var modelDumpCmd = &cobra.Command{
	Use:   "dump ITEM_ID",
	Short: "Print an item's LinUCB weight vector and observation count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		blob, err := db.Get(context.Background(), args[0])
		if err != nil {
			return err
		}
		if blob == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "item %s has no LinUCB model yet\n", args[0])
			return nil
		}
		model, err := linucb.Unmarshal(blob)
		if err != nil {
			return fmt.Errorf("unmarshaling model for %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "item=%s observations=%d\ntheta=%v\n", args[0], model.N, model.Theta)
		return nil
	},
}

var modelVerifyCmd = &cobra.Command{
	Use:   "verify ITEM_ID",
	Short: "Validate that A*AInv has not drifted from identity beyond tolerance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		blob, err := db.Get(context.Background(), args[0])
		if err != nil {
			return err
		}
		if blob == nil {
			return fmt.Errorf("item %s has no LinUCB model", args[0])
		}
		model, err := linucb.Unmarshal(blob)
		if err != nil {
			return fmt.Errorf("unmarshaling model for %s: %w", args[0], err)
		}
		const driftTolerance = 1e-6
		if err := model.Validate(driftTolerance); err != nil {
			return fmt.Errorf("item %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "item %s: model within drift tolerance\n", args[0])
		return nil
	},
}
