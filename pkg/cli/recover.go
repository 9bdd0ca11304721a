package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	agentuc "github.com/m-mizutani/burrow/pkg/usecase/agent"
)

func recoverCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "recover",
		Usage:     "Recover an agent identity from its recovery phrase",
		ArgsUsage: "<word1> ... <word24>",
		Flags:     globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			phrase := strings.Join(c.Args().Slice(), " ")
			if phrase == "" {
				return goerr.New("recovery phrase words are required as arguments")
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			agent, err := agentuc.New(repo).Recover(ctx, phrase)
			if err != nil {
				return err
			}

			fmt.Printf("Agent ID:   %s\n", agent.ID)
			fmt.Printf("Public key: %s\n", base64.StdEncoding.EncodeToString(agent.PublicKey))
			return nil
		},
	}
}
