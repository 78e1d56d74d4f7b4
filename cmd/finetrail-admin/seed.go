package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"finetrail/internal/seed"
)

func seedCmd(e *env) *cobra.Command {
	var (
		demo bool
		file string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the default categories, or a full demo ledger",
		Long: `Create the default income and expense categories for the user. Categories
whose name already exists are left alone, so seeding twice is harmless.

With --demo three wallets and two sample transactions are added as well,
unless the user already owns wallets. With --file the categories are read
from a YAML file instead of the built-in set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if demo {
				if file != "" {
					return fmt.Errorf("--demo and --file cannot be combined")
				}
				res, err := e.app.Service.SeedDemo(ctx, e.userID)
				if err != nil {
					return fmt.Errorf("seed demo ledger: %w", err)
				}
				fmt.Fprintf(out, "Seeded %d categories, %d wallets and %d transactions for %s\n",
					res.Categories, res.Wallets, res.Transactions, e.userID)
				return nil
			}

			specs, err := categorySpecs(file)
			if err != nil {
				return err
			}
			n, err := seed.NewSeeder(e.app.Service.Store(), e.logger).SeedCategories(ctx, e.userID, specs)
			e.app.Service.Invalidate(e.userID)
			if err != nil {
				return fmt.Errorf("seed categories: %w", err)
			}
			fmt.Fprintf(out, "Seeded %d of %d categories for %s\n", n, len(specs), e.userID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", false, "also create demo wallets and transactions")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with the categories to create")
	return cmd
}

func categorySpecs(file string) ([]seed.CategorySpec, error) {
	if file == "" {
		return seed.DefaultCategories()
	}
	return seed.LoadCategoriesFile(file)
}
