package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	agentuc "github.com/m-mizutani/burrow/pkg/usecase/agent"
)

func statsCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "stats",
		Usage: "Show aggregate service statistics",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			stats, err := agentuc.New(repo).Stats(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Total agents:         %d\n", stats.TotalAgents)
			fmt.Printf("Total memory records: %d\n", stats.TotalMemoryRecords)
			fmt.Printf("Avg versions/agent:   %.2f\n", stats.AverageVersionsPerAgent)
			return nil
		},
	}
}
