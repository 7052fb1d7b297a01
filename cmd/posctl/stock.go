package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/kiwari-pos/tabs/internal/database"
	"github.com/spf13/cobra"
)

var lowStock int32

var stockCmd = &cobra.Command{
	Use:   "stock",
	Short: "show on-hand quantities of stock-tracked products",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := openPool(ctx)
		if err != nil {
			return errors.Wrap(err, "connect")
		}
		defer pool.Close()

		levels, err := database.New(pool).ListStockLevels(ctx)
		if err != nil {
			return errors.Wrap(err, "list stock levels")
		}
		renderStock(os.Stdout, levels, lowStock)
		return nil
	},
}

func init() {
	stockCmd.Flags().Int32Var(&lowStock, "low", 5, "flag products at or below this quantity")
}
