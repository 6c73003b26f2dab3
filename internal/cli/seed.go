package cli

import (
	"time"

	"ecolearn-engine/internal/config"
	"ecolearn-engine/internal/infra/postgres"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads the starter quizzes, challenges, and badge definitions
// into Postgres. Safe to run repeatedly.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert starter quizzes, challenges, and badges",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			db, err := openBun(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return postgres.SeedContent(cmd.Context(), db, time.Now())
		},
	}
}
