package cli

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/urfave/cli/v3"

	agentuc "github.com/m-mizutani/burrow/pkg/usecase/agent"
)

func registerCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "register",
		Usage: "Create a new agent identity directly in the repository",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			reg, err := agentuc.New(repo).Register(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Agent ID:        %s\n", reg.Agent.ID)
			fmt.Printf("Public key:      %s\n", base64.StdEncoding.EncodeToString(reg.Agent.PublicKey))
			fmt.Printf("Recovery phrase: %s\n", reg.RecoveryPhrase)
			fmt.Println()
			fmt.Println("Save the recovery phrase now. It cannot be shown again.")
			return nil
		},
	}
}
