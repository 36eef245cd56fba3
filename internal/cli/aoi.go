package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"flowzero/internal/aoiserver"
)

var generateAOICmd = &cobra.Command{
	Use:   "generate-aoi",
	Short: "Serve a local map UI for drawing and saving AOIs",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if port == 0 {
			port = cfg.AOIServer.Port
		}

		fmt.Printf("Serving AOI editor on http://localhost:%d (saving to %s)\n", port, cfg.Storage.GeoJSONDir)
		return aoiserver.New(cfg.Storage.GeoJSONDir).Run(port)
	},
}

func init() {
	generateAOICmd.Flags().Int("port", 0, "listen port (default from config)")
}
