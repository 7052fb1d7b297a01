package main

import (
	"fmt"
	"log"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/tabs/internal/database"
	"github.com/kiwari-pos/tabs/internal/enum"
	"github.com/spf13/cobra"
)

type seedProduct struct {
	name        string
	price       string
	destination string
	// stock < 0 leaves the product untracked.
	stock int32
}

var demoMenu = []seedProduct{
	{"Nasi Goreng", "45.00", enum.DestinationKitchen, 20},
	{"Mie Goreng", "40.00", enum.DestinationKitchen, 20},
	{"Sate Ayam", "55.00", enum.DestinationKitchen, 15},
	{"Es Teh", "10.00", enum.DestinationBar, -1},
	{"Kopi Susu", "25.00", enum.DestinationBar, 30},
	{"Air Mineral", "8.00", enum.DestinationNone, 48},
	{"Kerupuk", "5.00", enum.DestinationNone, 40},
}

var seedTables int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "create demo tables, menu and stock",
	Long: `
Creates tables T-01..T-NN and a small menu. Existing tables are updated in
place; existing products and their stock are left untouched, so seed can be
re-run safely.
`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedTables, "tables", 8, "number of dining tables to create")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pool, err := openPool(ctx)
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	q := database.New(tx)

	for i := 1; i <= seedTables; i++ {
		area := "Main Hall"
		if i > seedTables/2 {
			area = "Terrace"
		}
		if _, err := q.CreateTable(ctx, database.CreateTableParams{
			Code:     fmt.Sprintf("T-%02d", i),
			Capacity: 4,
			Area:     area,
		}); err != nil {
			return errors.Wrapf(err, "create table T-%02d", i)
		}
	}

	created := 0
	for _, p := range demoMenu {
		_, err := q.GetProductByName(ctx, p.name)
		if err == nil {
			log.Printf("Product %q already exists, skipping", p.name)
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return errors.Wrapf(err, "check product %q", p.name)
		}

		var price pgtype.Numeric
		if err := price.Scan(p.price); err != nil {
			return errors.Wrapf(err, "price for %q", p.name)
		}
		product, err := q.CreateProduct(ctx, database.CreateProductParams{
			Name:        p.name,
			Price:       price,
			Destination: p.destination,
		})
		if err != nil {
			return errors.Wrapf(err, "create product %q", p.name)
		}
		if p.stock >= 0 {
			if _, err := q.UpsertStockEntry(ctx, database.UpsertStockEntryParams{
				ProductID:      product.ID,
				QuantityOnHand: p.stock,
			}); err != nil {
				return errors.Wrapf(err, "stock for %q", p.name)
			}
		}
		created++
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	log.Printf("Seed completed: %d tables, %d new products", seedTables, created)
	return nil
}
