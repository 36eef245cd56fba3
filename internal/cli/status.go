package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"flowzero/internal/services"
)

var checkStatusCmd = &cobra.Command{
	Use:   "check-order-status <order-id>",
	Short: "Poll one order and optionally download its files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		download, _ := cmd.Flags().GetBool("download")
		overwrite, _ := cmd.Flags().GetBool("overwrite")
		output, _ := cmd.Flags().GetString("output")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyOutput(cfg, output)
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		svc, err := newStatusService(cfg, store)
		if err != nil {
			return err
		}

		result, err := svc.CheckOrder(cmd.Context(), args[0], services.CheckOptions{
			Download:  download,
			Overwrite: overwrite,
		})
		if err != nil {
			return err
		}
		printCheck(result)
		return nil
	},
}

var batchCheckCmd = &cobra.Command{
	Use:   "batch-check-status <batch-id>",
	Short: "Poll every order in a batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		download, _ := cmd.Flags().GetBool("download")
		overwrite, _ := cmd.Flags().GetBool("overwrite")
		recheck, _ := cmd.Flags().GetBool("recheck")
		pending, _ := cmd.Flags().GetBool("pending")
		output, _ := cmd.Flags().GetString("output")

		if !pending && len(args) != 1 {
			return fmt.Errorf("a batch ID is required unless --pending is set")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyOutput(cfg, output)
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		svc, err := newStatusService(cfg, store)
		if err != nil {
			return err
		}
		opts := services.CheckOptions{Download: download, Overwrite: overwrite}

		if pending {
			orders, err := store.PendingOrders()
			if err != nil {
				return err
			}
			if len(orders) == 0 {
				fmt.Println("No pending orders.")
				return nil
			}
			for _, r := range svc.PendingSweep(cmd.Context(), orders, opts) {
				printCheck(&r)
			}
			return nil
		}

		result, err := svc.BatchCheck(cmd.Context(), args[0], recheck, opts)
		if err != nil {
			return err
		}
		for _, r := range result.Checked {
			printCheck(&r)
		}
		fmt.Printf("Checked %d, skipped %d terminal, %d check failures\n",
			len(result.Checked), result.Skipped, result.Failed)
		return nil
	},
}

func printCheck(r *services.CheckResult) {
	fmt.Printf("Order %s: %s", r.OrderID, r.State)
	if t := r.Tally; t.Downloaded+t.Skipped+t.Failed > 0 {
		fmt.Printf("  (%d downloaded, %d skipped, %d failed)", t.Downloaded, t.Skipped, t.Failed)
	}
	fmt.Println()
	for _, hint := range r.ErrorHints {
		fmt.Printf("  hint: %s\n", hint)
	}
}

func init() {
	for _, cmd := range []*cobra.Command{checkStatusCmd, batchCheckCmd} {
		cmd.Flags().Bool("download", false, "download finished files")
		cmd.Flags().Bool("overwrite", false, "re-download files the sink already holds")
		cmd.Flags().String("output", "", "download target: s3, supabase, or a local directory")
	}
	batchCheckCmd.Flags().Bool("recheck", false, "re-poll successful orders too")
	batchCheckCmd.Flags().Bool("pending", false, "sweep every pending order instead of a batch")
}
