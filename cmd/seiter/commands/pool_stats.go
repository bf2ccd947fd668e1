package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nevindra/seiter"
)

// NewPoolStatsCmd constructs the `seiter pool-stats` subcommand: loads
// traj.pool from a workspace and prints the same
// {total_instances, total_iterations, instances[]} shape the original
// TrajPoolManager.get_pool_stats() exposed only as an internal helper.
func NewPoolStatsCmd() *cobra.Command {
	var workspace string

	cmd := &cobra.Command{
		Use:   "pool-stats",
		Short: "Print trajectory pool statistics for a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool := seiter.NewPool(filepath.Join(workspace, "traj.pool"), nil, nil)
			stats, err := pool.GetPoolStats()
			if err != nil {
				return err
			}
			fmt.Printf("total_instances: %d\n", stats.TotalInstances)
			fmt.Printf("total_iterations: %d\n", stats.TotalIterations)
			fmt.Printf("instances: %v\n", stats.Instances)
			return nil
		},
	}

	cmd.Flags().StringVar(&workspace, "workspace", "", "Workspace directory containing traj.pool")
	cmd.MarkFlagRequired("workspace")
	return cmd
}
