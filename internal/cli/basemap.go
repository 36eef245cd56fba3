package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"flowzero/internal/services"
)

var listBasemapsCmd = &cobra.Command{
	Use:   "list-basemaps",
	Short: "List available basemap mosaics",
	RunE: func(cmd *cobra.Command, args []string) error {
		nameContains, _ := cmd.Flags().GetString("name-contains")
		after, _ := cmd.Flags().GetString("acquired-after")

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

		mosaics, err := svc.ListBasemaps(cmd.Context(), nameContains)
		if err != nil {
			return err
		}
		shown := 0
		for _, m := range mosaics {
			// Acquisition stamps are RFC 3339, so a YYYY-MM-DD prefix
			// comparison orders correctly.
			if after != "" && m.LastAcquired < after {
				continue
			}
			fmt.Printf("%-40s %s to %s\n", m.Name, m.FirstAcquired, m.LastAcquired)
			shown++
		}
		if shown == 0 {
			fmt.Println("No mosaics found.")
		}
		return nil
	},
}

var orderBasemapCmd = &cobra.Command{
	Use:   "order-basemap",
	Short: "Order a basemap mosaic clipped to an AOI",
	RunE: func(cmd *cobra.Command, args []string) error {
		geojsonPath, _ := cmd.Flags().GetString("geojson")
		aoiName, _ := cmd.Flags().GetString("aoi")
		mosaic, _ := cmd.Flags().GetString("mosaic")
		force, _ := cmd.Flags().GetBool("force")
		yes, _ := cmd.Flags().GetBool("yes")

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

		if !confirm(fmt.Sprintf("Order basemap %s for %s (%.1f sq km)?", mosaic, aoi.Name, aoi.AreaSqKm), yes) {
			fmt.Println("Aborted.")
			return nil
		}

		order, err := svc.OrderBasemap(cmd.Context(), aoi, mosaic, force)
		var dup *services.DuplicateError
		if errors.As(err, &dup) {
			fmt.Printf("Skipping: %v (use --force to order anyway)\n", dup)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Basemap order %s submitted (%s).\n", order.OrderID, order.Status)
		return nil
	},
}

func init() {
	listBasemapsCmd.Flags().String("name-contains", "", "filter mosaics by name fragment")
	listBasemapsCmd.Flags().String("acquired-after", "", "only mosaics acquired on or after this date (YYYY-MM-DD)")

	orderBasemapCmd.Flags().String("geojson", "", "path to the AOI GeoJSON file")
	orderBasemapCmd.Flags().String("aoi", "", "AOI name resolved under the geojson directory")
	orderBasemapCmd.Flags().String("mosaic", "", "mosaic name to order")
	orderBasemapCmd.Flags().Bool("force", false, "order even when a prior order covers this mosaic")
	orderBasemapCmd.Flags().Bool("yes", false, "skip the confirmation prompt")
	orderBasemapCmd.MarkFlagRequired("mosaic")
}
