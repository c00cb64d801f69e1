package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustbelt-games/atlas/internal/ingest"
	"github.com/rustbelt-games/atlas/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a region's map geometry",
	Long:  "Computes hex coverage for the region bounding box, ingests contained roads, buildings, places and land, assigns hubs, and builds the road graph. Safe to re-run; intended for a maintenance window.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		regionID, _ := cmd.Flags().GetString("region")
		regionName, _ := cmd.Flags().GetString("name")
		bbox, _ := cmd.Flags().GetFloat64Slice("bbox")
		if regionID == "" {
			return eris.New("atlas ingest: --region is required")
		}
		if len(bbox) != 4 {
			return eris.New("atlas ingest: --bbox requires min_lng,min_lat,max_lng,max_lat")
		}
		if regionName == "" {
			regionName = regionID
		}

		segments, _ := cmd.Flags().GetString("segments")
		buildings, _ := cmd.Flags().GetString("buildings")
		places, _ := cmd.Flags().GetString("places")
		land, _ := cmd.Flags().GetString("land")
		if segments == "" {
			segments = cfg.Ingest.SegmentsPath
		}
		if buildings == "" {
			buildings = cfg.Ingest.BuildingsPath
		}
		if places == "" {
			places = cfg.Ingest.PlacesPath
		}
		if land == "" {
			land = cfg.Ingest.LandShapefile
		}

		pool, err := atlasPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		zap.L().Info("starting ingest",
			zap.String("region", regionID),
			zap.Float64s("bbox", bbox),
		)

		err = ingest.Run(ctx, store.NewPostgresStore(pool), ingest.Options{
			RegionID:   regionID,
			RegionName: regionName,
			Bound: orb.Bound{
				Min: orb.Point{bbox[0], bbox[1]},
				Max: orb.Point{bbox[2], bbox[3]},
			},
			Resolution:     cfg.Ingest.HexResolution,
			BatchSize:      cfg.Ingest.BatchSize,
			HexTypeCap:     cfg.Ingest.HexTypeCap,
			SegmentsPath:   segments,
			BuildingsPath:  buildings,
			PlacesPath:     places,
			LandShapefile:  land,
			HubCloseWeight: cfg.Ingest.HubCloseWeight,
			HubSizeWeight:  cfg.Ingest.HubSizeWeight,
		})
		if err != nil {
			return eris.Wrap(err, "atlas ingest")
		}

		fmt.Println("Ingest complete")
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("region", "", "region id (required)")
	ingestCmd.Flags().String("name", "", "region display name (defaults to id)")
	ingestCmd.Flags().Float64Slice("bbox", nil, "region bounding box: min_lng,min_lat,max_lng,max_lat")
	ingestCmd.Flags().String("segments", "", "road segments GeoJSONL path (overrides config)")
	ingestCmd.Flags().String("buildings", "", "buildings GeoJSONL path (overrides config)")
	ingestCmd.Flags().String("places", "", "places GeoJSONL path (overrides config)")
	ingestCmd.Flags().String("land", "", "land polygons shapefile path (overrides config)")
	rootCmd.AddCommand(ingestCmd)
}
