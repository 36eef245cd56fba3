package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"flowzero/internal/models"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect the local order table",
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregate counts and quota totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats()
		if err != nil {
			return err
		}

		fmt.Printf("Orders: %d across %d AOIs, %d batches\n", stats.TotalOrders, stats.DistinctAOIs, stats.DistinctBatches)
		fmt.Printf("Scenes selected: %d, quota used: %.0f ha\n", stats.TotalScenesSelected, stats.TotalQuotaHectares)
		for _, key := range sortedKeys(stats.ByStatus) {
			fmt.Printf("  status %-10s %d\n", key, stats.ByStatus[key])
		}
		for _, key := range sortedKeys(stats.ByType) {
			fmt.Printf("  type   %-10s %d\n", key, stats.ByType[key])
		}
		return nil
	},
}

var dbListOrdersCmd = &cobra.Command{
	Use:   "list-orders",
	Short: "List orders, optionally filtered by status or AOI",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		aoi, _ := cmd.Flags().GetString("aoi")
		if status != "" && aoi != "" {
			return fmt.Errorf("--status and --aoi are mutually exclusive")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		var orders []models.Order
		switch {
		case status != "":
			orders, err = store.OrdersByStatus(status)
		case aoi != "":
			orders, err = store.OrdersByAOI(aoi)
		default:
			orders, err = store.ListOrders()
		}
		if err != nil {
			return err
		}
		printOrders(orders)
		return nil
	},
}

var dbListBatchesCmd = &cobra.Command{
	Use:   "list-batches",
	Short: "List batches with their order counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		batches, err := store.ListBatches()
		if err != nil {
			return err
		}
		if len(batches) == 0 {
			fmt.Println("No batches.")
			return nil
		}
		for _, b := range batches {
			fmt.Printf("%s  %d orders  first %s\n", b.BatchID, b.OrderCount, b.FirstOrder.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var dbPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List orders still awaiting a terminal status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		orders, err := store.PendingOrders()
		if err != nil {
			return err
		}
		printOrders(orders)
		return nil
	},
}

var dbGetCmd = &cobra.Command{
	Use:   "get <order-id>",
	Short: "Show one order in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		o, err := store.Get(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Order:    %s (%s)\n", o.OrderID, o.OrderType)
		fmt.Printf("AOI:      %s (%.1f sq km)\n", o.AOIName, o.AOIAreaSqKm)
		fmt.Printf("Window:   %s to %s\n", o.StartDate, o.EndDate)
		fmt.Printf("Status:   %s\n", o.Status)
		if o.OrderType == models.OrderTypeImagery {
			fmt.Printf("Scenes:   %d found, %d selected (%d-band, %s)\n",
				o.ScenesFound, o.ScenesSelected, o.NumBands, o.ProductBundle)
			fmt.Printf("Quota:    %.0f ha\n", o.QuotaHectares)
		} else {
			fmt.Printf("Mosaic:   %s\n", o.MosaicName)
		}
		if o.BatchID != "" {
			fmt.Printf("Batch:    %s\n", o.BatchID)
		}
		fmt.Printf("Created:  %s\n", o.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Updated:  %s\n", o.UpdatedAt.Format("2006-01-02 15:04:05"))
		if len(o.Metadata) > 0 {
			fmt.Printf("Metadata: %s\n", string(o.Metadata))
		}
		return nil
	},
}

func printOrders(orders []models.Order) {
	if len(orders) == 0 {
		fmt.Println("No orders.")
		return
	}
	for _, o := range orders {
		fmt.Printf("%-26s %-10s %-9s %-15s %s to %s\n",
			o.OrderID, o.Status, o.OrderType, o.AOIName, o.StartDate, o.EndDate)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	dbListOrdersCmd.Flags().String("status", "", "filter by status")
	dbListOrdersCmd.Flags().String("aoi", "", "filter by AOI name")

	dbCmd.AddCommand(dbStatsCmd)
	dbCmd.AddCommand(dbListOrdersCmd)
	dbCmd.AddCommand(dbListBatchesCmd)
	dbCmd.AddCommand(dbPendingCmd)
	dbCmd.AddCommand(dbGetCmd)
}
