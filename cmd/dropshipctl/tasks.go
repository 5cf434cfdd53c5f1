package main

import (
	"fmt"

	"github.com/dropship/backend/internal/application/catalogsync"
	"github.com/dropship/backend/internal/bootstrap"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) syncCmd() *cobra.Command {
	var opts catalogsync.Options
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a catalog sync pass against the supplier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(app *bootstrap.App) error {
				result, err := app.Engine.Run(cmd.Context(), opts)
				if err != nil {
					return err
				}
				return c.print(result)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.CategoryID, "category", "", "restrict the pass to one supplier category")
	f.StringVar(&opts.Warehouse, "warehouse", "", "supplier warehouse filter")
	f.IntVar(&opts.PageSize, "page-size", 0, "listing page size (0 uses the configured default)")
	f.IntVar(&opts.MaxPages, "max-pages", 0, "stop after this many pages (0 means all)")
	f.BoolVar(&opts.Resync, "resync", false, "fetch detail for every listed product")
	return cmd
}

func (c *cli) repriceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reprice",
		Short: "Recompute retail prices from stored supplier costs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(app *bootstrap.App) error {
				result, err := app.Engine.Reprice(cmd.Context(), nil)
				if err != nil {
					return err
				}
				return c.print(result)
			})
		},
	}
}

func (c *cli) stockCmd() *cobra.Command {
	var product string
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Refresh supplier stock for one or all active products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var productID *uuid.UUID
			if product != "" {
				id, err := uuid.Parse(product)
				if err != nil {
					return fmt.Errorf("invalid --product: %w", err)
				}
				productID = &id
			}
			return c.withApp(cmd.Context(), func(app *bootstrap.App) error {
				result, err := app.Stock.Check(cmd.Context(), productID)
				if err != nil {
					return err
				}
				return c.print(result)
			})
		},
	}
	cmd.Flags().StringVar(&product, "product", "", "product ID to check")
	return cmd
}

func (c *cli) pollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Poll supplier tracking for open orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(app *bootstrap.App) error {
				summary, err := app.Fulfillment.PollOpen(cmd.Context())
				if err != nil {
					return err
				}
				return c.print(summary)
			})
		},
	}
}

func (c *cli) reviewsCmd() *cobra.Command {
	var product string
	cmd := &cobra.Command{
		Use:   "reviews",
		Short: "Import supplier reviews",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(app *bootstrap.App) error {
				if product == "" {
					result, err := app.Reviews.SyncAll(cmd.Context())
					if err != nil {
						return err
					}
					return c.print(result)
				}
				id, err := uuid.Parse(product)
				if err != nil {
					return fmt.Errorf("invalid --product: %w", err)
				}
				result, err := app.Reviews.SyncProduct(cmd.Context(), id)
				if err != nil {
					return err
				}
				return c.print(result)
			})
		},
	}
	cmd.Flags().StringVar(&product, "product", "", "only sync this product")
	return cmd
}

func (c *cli) jobsCmd() *cobra.Command {
	jobs := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}
	jobs.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered jobs and their schedules",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withApp(cmd.Context(), func(app *bootstrap.App) error {
					for _, job := range app.Jobs() {
						schedule := job.Schedule
						if schedule == "" {
							schedule = "(on demand)"
						}
						fmt.Fprintf(c.out, "%-16s %s\n", job.Name, schedule)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "run <name>",
			Short: "Run one job now, honouring the overlap guard",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withApp(cmd.Context(), func(app *bootstrap.App) error {
					sched, err := app.NewScheduler()
					if err != nil {
						return err
					}
					ran, err := sched.RunNow(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if !ran {
						c.log.Warn("job skipped, a previous run is still active", zap.String("job", args[0]))
					}
					return nil
				})
			},
		},
	)
	return jobs
}
