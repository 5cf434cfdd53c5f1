package main

import (
	"fmt"
	"strconv"

	"github.com/dropship/backend/internal/bootstrap"
	"github.com/dropship/backend/internal/infrastructure/migration"
	"github.com/dropship/backend/migrations"
	"github.com/spf13/cobra"
)

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	withMigrator := func(fn func(*migration.Migrator) error) error {
		m, err := bootstrap.OpenMigrator(&c.cfg.Database, c.log)
		if err != nil {
			return err
		}
		defer func() { _ = m.Close() }()
		return fn(m)
	}

	var dir string
	create := &cobra.Command{
		Use:   "create <name> [description]",
		Short: "Scaffold a new up/down migration pair",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			desc := ""
			if len(args) == 2 {
				desc = args[1]
			}
			file, err := migration.Create(dir, args[0], desc)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "created %s\ncreated %s\n", file.UpPath, file.DownPath)
			return nil
		},
	}
	create.Flags().StringVar(&dir, "dir", "migrations", "directory holding migration files")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return withMigrator(func(m *migration.Migrator) error { return m.Up() })
			},
		},
		&cobra.Command{
			Use:   "down [n]",
			Short: "Roll back n migrations (default 1)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				n := 1
				if len(args) == 1 {
					v, err := strconv.Atoi(args[0])
					if err != nil || v < 1 {
						return fmt.Errorf("invalid step count %q", args[0])
					}
					n = v
				}
				return withMigrator(func(m *migration.Migrator) error { return m.Down(n) })
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return withMigrator(func(m *migration.Migrator) error {
					v, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(c.out, "version=%d dirty=%t\n", v, dirty)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return withMigrator(func(m *migration.Migrator) error { return m.Force(v) })
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List embedded migrations",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				names, err := migration.List(migrations.FS)
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(c.out, name)
				}
				return nil
			},
		},
		create,
	)
	return cmd
}
