// Package cli wires the tool's commands.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"flowzero/internal/config"
	"flowzero/internal/database"
	"flowzero/internal/downloader"
	"flowzero/internal/geometry"
	"flowzero/internal/planet"
	"flowzero/internal/services"
	"flowzero/internal/storage"
)

var (
	cfgFile    string
	apiKeyFlag string
)

var rootCmd = &cobra.Command{
	Use:          "flowzero",
	Short:        "Order, track and download satellite imagery",
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.EnableCommandSorting = false
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config.yaml")
	rootCmd.PersistentFlags().StringVar(&apiKeyFlag, "api-key", "", "provider API key (overrides PL_API_KEY)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(batchSubmitCmd)
	rootCmd.AddCommand(searchScenesCmd)
	rootCmd.AddCommand(checkStatusCmd)
	rootCmd.AddCommand(batchCheckCmd)
	rootCmd.AddCommand(listBasemapsCmd)
	rootCmd.AddCommand(orderBasemapCmd)
	rootCmd.AddCommand(generateAOICmd)
	rootCmd.AddCommand(dbCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if apiKeyFlag != "" {
		cfg.API.APIKey = apiKeyFlag
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*database.Store, error) {
	return database.Open(cfg.Database.Driver, cfg.Database.DSN)
}

func newPlanet(cfg *config.Config) (*planet.Client, error) {
	if cfg.API.APIKey == "" {
		return nil, fmt.Errorf("PL_API_KEY is not set")
	}
	retry := planet.RetryPolicy{
		MaxAttempts:    cfg.API.RetryAttempts,
		InitialBackoff: cfg.API.RetryBackoff,
		MaxBackoff:     cfg.API.RetryMaxBackoff,
	}
	return planet.NewClient(cfg.API.BaseURL, cfg.API.APIKey, cfg.API.Timeout, retry, cfg.API.PaginationDelay), nil
}

func newSink(cfg *config.Config) (storage.Sink, error) {
	switch cfg.Downloads.Backend {
	case "fs":
		return storage.NewFSSink(cfg.Downloads.LocalDir), nil
	case "s3":
		return storage.NewS3Sink(storage.S3Options{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
		})
	case "supabase":
		return storage.NewSupabaseSink(cfg.Supabase.URL, cfg.Supabase.Key, cfg.Supabase.Bucket), nil
	}
	return nil, fmt.Errorf("unknown downloads backend %q", cfg.Downloads.Backend)
}

func newSubmitService(cfg *config.Config, store *database.Store) (*services.SubmitService, error) {
	api, err := newPlanet(cfg)
	if err != nil {
		return nil, err
	}
	return services.NewSubmitService(store, api, cfg.API.MinCoveragePct, cfg.API.MaxCloudCoverPct), nil
}

func newStatusService(cfg *config.Config, store *database.Store) (*services.StatusService, error) {
	api, err := newPlanet(cfg)
	if err != nil {
		return nil, err
	}
	sink, err := newSink(cfg)
	if err != nil {
		return nil, err
	}
	engine := downloader.NewEngine(api, cfg.Downloads.MaxConcurrent)
	return services.NewStatusService(store, api, engine, sink), nil
}

// applyOutput maps a --output value onto the downloads config: "s3",
// "supabase", or a local directory path.
func applyOutput(cfg *config.Config, output string) {
	switch output {
	case "":
	case "s3", "supabase":
		cfg.Downloads.Backend = output
	default:
		cfg.Downloads.Backend = "fs"
		cfg.Downloads.LocalDir = output
	}
}

// resolveAOI loads an AOI either from an explicit GeoJSON path or by
// name under the configured geojson directory.
func resolveAOI(cfg *config.Config, geojsonPath, aoiName string) (*geometry.AOI, error) {
	switch {
	case geojsonPath != "":
		name := aoiName
		if name == "" {
			base := filepath.Base(geojsonPath)
			name = strings.TrimSuffix(base, filepath.Ext(base))
		}
		return geometry.LoadAOI(geojsonPath, geometry.NormalizeAOIName(name))
	case aoiName != "":
		path := filepath.Join(cfg.Storage.GeoJSONDir, aoiName+".geojson")
		return geometry.LoadAOI(path, geometry.NormalizeAOIName(aoiName))
	}
	return nil, fmt.Errorf("either --geojson or --aoi is required")
}

// confirm asks for interactive approval unless yes is set.
func confirm(prompt string, yes bool) bool {
	if yes {
		return true
	}
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
