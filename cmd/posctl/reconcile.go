package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/kiwari-pos/tabs/internal/router"
	"github.com/kiwari-pos/tabs/internal/service"
	"github.com/spf13/cobra"
)

var reconcileFix bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "find order and tab totals that drifted from their items",
	Long: `
Recomputes every unsettled order from its items and every open tab from its
orders, and lists the ones whose stored totals disagree. With --fix the
stored totals are rewritten.
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := openPool(ctx)
		if err != nil {
			return errors.Wrap(err, "connect")
		}
		defer pool.Close()

		rec := service.NewReconciler(router.NewCore(cfg, pool, nil))

		var drifts []service.Drift
		if reconcileFix {
			drifts, err = rec.Fix(ctx)
		} else {
			drifts, err = rec.Scan(ctx)
		}
		if err != nil {
			return err
		}
		renderDrifts(os.Stdout, drifts)
		return nil
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileFix, "fix", false, "rewrite drifted totals")
}
