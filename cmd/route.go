package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rustbelt-games/atlas/internal/routing"
	"github.com/rustbelt-games/atlas/internal/store"
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Compute a convoy travel plan",
	Long:  "Runs the full online query path — graph load, nearest-connector snap, shortest-path search, waypoint schedule — and prints the plan as JSON. Falls back to the straight-line estimate when no route exists.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		regionID, _ := cmd.Flags().GetString("region")
		from, _ := cmd.Flags().GetFloat64Slice("from")
		to, _ := cmd.Flags().GetFloat64Slice("to")
		departAtMs, _ := cmd.Flags().GetInt64("depart-at-ms")
		if regionID == "" {
			return eris.New("atlas route: --region is required")
		}
		if len(from) != 2 || len(to) != 2 {
			return eris.New("atlas route: --from and --to require lng,lat")
		}

		pool, err := atlasPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		cache := routing.NewGraphCache(
			store.NewPostgresStore(pool),
			cfg.Routing.CacheTTL,
			cfg.Routing.HealthPenaltyK,
		)
		engine := routing.NewEngine(cache, routing.TravelParams{
			SpeedMps:          cfg.Travel.SpeedMps,
			MinSeconds:        cfg.Travel.MinSeconds,
			MaxSeconds:        cfg.Travel.MaxSeconds,
			FallbackInflation: cfg.Travel.FallbackInflation,
		})

		plan := engine.PlanTravel(ctx, regionID,
			orb.Point{from[0], from[1]},
			orb.Point{to[0], to[1]},
			departAtMs,
		)

		out, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return eris.Wrap(err, "atlas route: encode plan")
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	routeCmd.Flags().String("region", "", "region id (required)")
	routeCmd.Flags().Float64Slice("from", nil, "start position: lng,lat")
	routeCmd.Flags().Float64Slice("to", nil, "destination position: lng,lat")
	routeCmd.Flags().Int64("depart-at-ms", 0, "departure time in unix milliseconds")
	rootCmd.AddCommand(routeCmd)
}
