package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rustbelt-games/atlas/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a region's ingested state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		regionID, _ := cmd.Flags().GetString("region")
		if regionID == "" {
			return eris.New("atlas status: --region is required")
		}

		pool, err := atlasPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		st := store.NewPostgresStore(pool)

		stats, err := st.Stats(ctx, regionID)
		if err != nil {
			return eris.Wrap(err, "atlas status")
		}

		fmt.Printf("region:     %s\n", stats.RegionID)
		fmt.Printf("features:   %d\n", stats.Features)
		fmt.Printf("hex cells:  %d\n", stats.HexCells)
		fmt.Printf("connectors: %d\n", stats.Connectors)
		fmt.Printf("edges:      %d\n", stats.Edges)
		fmt.Printf("hubs:       %d\n", stats.Hubs)

		run, err := st.LastIngestRun(ctx, regionID)
		if err != nil {
			return eris.Wrap(err, "atlas status")
		}
		if run == nil {
			fmt.Println("last run:   none")
			return nil
		}
		fmt.Printf("last run:   %s (%s, started %s)\n", run.ID, run.Status, run.StartedAt.Format("2006-01-02 15:04:05"))
		if len(run.Counts) > 0 {
			fmt.Printf("counts:     %s\n", string(run.Counts))
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().String("region", "", "region id (required)")
	rootCmd.AddCommand(statusCmd)
}
