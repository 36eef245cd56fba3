package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"flowzero/internal/dates"
	"flowzero/internal/geometry"
	"flowzero/internal/services"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Search, select and order scenes for one AOI",
	RunE: func(cmd *cobra.Command, args []string) error {
		geojsonPath, _ := cmd.Flags().GetString("geojson")
		aoiName, _ := cmd.Flags().GetString("aoi")
		startDate, _ := cmd.Flags().GetString("start-date")
		endDate, _ := cmd.Flags().GetString("end-date")
		cadenceStr, _ := cmd.Flags().GetString("cadence")
		bands, _ := cmd.Flags().GetInt("num-bands")
		clip, _ := cmd.Flags().GetBool("clip")
		force, _ := cmd.Flags().GetBool("force")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		yes, _ := cmd.Flags().GetBool("yes")

		cadence, err := dates.ParseCadence(cadenceStr)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		aoi, err := resolveAOI(cfg, geojsonPath, aoiName)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		svc, err := newSubmitService(cfg, store)
		if err != nil {
			return err
		}

		plan, err := svc.PlanOrder(cmd.Context(), services.OrderRequest{
			AOI:       aoi,
			StartDate: startDate,
			EndDate:   endDate,
			Cadence:   cadence,
			NumBands:  bands,
			Clip:      clip,
			Force:     force,
		})
		var dup *services.DuplicateError
		if errors.As(err, &dup) {
			fmt.Printf("Skipping: %v (use --force to order anyway)\n", dup)
			return nil
		}
		if err != nil {
			return err
		}

		printPlan(aoi, plan)
		if len(plan.Scenes) == 0 {
			fmt.Println("No scenes matched; nothing to order.")
			return nil
		}
		if dryRun {
			return nil
		}
		if !confirm(fmt.Sprintf("Submit order for %d scenes (%.0f ha)?", len(plan.Scenes), plan.QuotaHectares), yes) {
			fmt.Println("Aborted.")
			return nil
		}

		order, err := svc.PlaceOrder(cmd.Context(), plan)
		if err != nil {
			return err
		}
		fmt.Printf("Order %s submitted (%s).\n", order.OrderID, order.Status)
		return nil
	},
}

var searchScenesCmd = &cobra.Command{
	Use:   "search-scenes",
	Short: "Preview scene search and selection without ordering",
	RunE: func(cmd *cobra.Command, args []string) error {
		geojsonPath, _ := cmd.Flags().GetString("geojson")
		aoiName, _ := cmd.Flags().GetString("aoi")
		startDate, _ := cmd.Flags().GetString("start-date")
		endDate, _ := cmd.Flags().GetString("end-date")
		cadenceStr, _ := cmd.Flags().GetString("cadence")
		bands, _ := cmd.Flags().GetInt("num-bands")

		cadence, err := dates.ParseCadence(cadenceStr)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		aoi, err := resolveAOI(cfg, geojsonPath, aoiName)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		svc, err := newSubmitService(cfg, store)
		if err != nil {
			return err
		}

		plan, err := svc.PlanOrder(cmd.Context(), services.OrderRequest{
			AOI:       aoi,
			StartDate: startDate,
			EndDate:   endDate,
			Cadence:   cadence,
			NumBands:  bands,
			Force:     true, // preview never cares about duplicates
		})
		if err != nil {
			return err
		}

		printPlan(aoi, plan)
		for _, s := range plan.Scenes {
			fmt.Printf("  %s  acquired %s  coverage %.1f%%  cloud %.1f%%\n",
				s.ID, s.AcquiredAt.Format("2006-01-02 15:04"), s.CoveragePct, s.CloudCoverPct)
		}
		return nil
	},
}

var batchSubmitCmd = &cobra.Command{
	Use:   "batch-submit <features.geojson>",
	Short: "Order scenes for every feature in a collection",
	Long: "Reads a GeoJSON FeatureCollection whose features carry site_id,\n" +
		"start_date and end_date properties, splits long windows into\n" +
		"chunks, and submits one order per site per chunk.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cadenceStr, _ := cmd.Flags().GetString("cadence")
		bands, _ := cmd.Flags().GetInt("num-bands")
		clip, _ := cmd.Flags().GetBool("clip")
		maxMonths, _ := cmd.Flags().GetInt("max-months")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		force, _ := cmd.Flags().GetBool("force")
		yes, _ := cmd.Flags().GetBool("yes")

		cadence, err := dates.ParseCadence(cadenceStr)
		if err != nil {
			return err
		}
		features, skipped, err := geometry.LoadBatchFeatures(args[0])
		if err != nil {
			return err
		}
		for _, reason := range skipped {
			fmt.Printf("Skipping %s\n", reason)
		}
		if len(features) == 0 {
			return fmt.Errorf("no usable features in %s", args[0])
		}

		if !dryRun && !confirm(fmt.Sprintf("Submit orders for %d sites?", len(features)), yes) {
			fmt.Println("Aborted.")
			return nil
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
		svc, err := newSubmitService(cfg, store)
		if err != nil {
			return err
		}

		result, err := svc.BatchSubmit(cmd.Context(), features, services.BatchOptions{
			Cadence:   cadence,
			NumBands:  bands,
			Clip:      clip,
			MaxMonths: maxMonths,
			DryRun:    dryRun,
			Force:     force,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Batch %s\n", result.BatchID)
		for _, item := range result.Items {
			switch {
			case item.Order != nil:
				fmt.Printf("  %-20s %s to %s  order %s (%d scenes)\n",
					item.AOIName, item.StartDate, item.EndDate, item.Order.OrderID, item.Order.ScenesSelected)
			case item.Err != nil:
				fmt.Printf("  %-20s %s to %s  %v\n", item.AOIName, item.StartDate, item.EndDate, item.Err)
			case item.Plan != nil:
				fmt.Printf("  %-20s %s to %s  planned %d scenes (%.0f ha)\n",
					item.AOIName, item.StartDate, item.EndDate, len(item.Plan.Scenes), item.Plan.QuotaHectares)
			}
		}
		fmt.Printf("Submitted %d, duplicates %d, no scenes %d, failed %d\n",
			result.Submitted, result.Duplicates, result.NoScenes, result.Failed)
		return nil
	},
}

func printPlan(aoi *geometry.AOI, plan *services.Plan) {
	fmt.Printf("AOI %s (%.1f sq km): %d scenes found, %d selected, %.0f ha quota\n",
		aoi.Name, aoi.AreaSqKm, plan.ScenesFound, len(plan.Scenes), plan.QuotaHectares)
}

func init() {
	for _, cmd := range []*cobra.Command{submitCmd, searchScenesCmd} {
		cmd.Flags().String("geojson", "", "path to the AOI GeoJSON file")
		cmd.Flags().String("aoi", "", "AOI name resolved under the geojson directory")
		cmd.Flags().String("start-date", "", "start date (YYYY-MM-DD)")
		cmd.Flags().String("end-date", "", "end date (YYYY-MM-DD)")
		cmd.Flags().String("cadence", "weekly", "selection cadence: daily, weekly or monthly")
		cmd.Flags().Int("num-bands", 4, "band count: 4 or 8")
		cmd.MarkFlagRequired("start-date")
		cmd.MarkFlagRequired("end-date")
	}
	submitCmd.Flags().Bool("clip", true, "clip delivered scenes to the AOI")
	submitCmd.Flags().Bool("force", false, "order even when a prior order covers this window")
	submitCmd.Flags().Bool("dry-run", false, "plan only, do not submit")
	submitCmd.Flags().Bool("yes", false, "skip the confirmation prompt")

	batchSubmitCmd.Flags().String("cadence", "weekly", "selection cadence: daily, weekly or monthly")
	batchSubmitCmd.Flags().Int("num-bands", 4, "band count: 4 or 8")
	batchSubmitCmd.Flags().Bool("clip", true, "clip delivered scenes to each AOI")
	batchSubmitCmd.Flags().Int("max-months", 6, "maximum months per order chunk")
	batchSubmitCmd.Flags().Bool("dry-run", false, "plan only, do not submit")
	batchSubmitCmd.Flags().Bool("force", false, "order even when prior orders cover a window")
	batchSubmitCmd.Flags().Bool("yes", false, "skip the confirmation prompt")
}
