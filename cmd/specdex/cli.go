package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tmoller/specdex/internal/config"
	"github.com/tmoller/specdex/internal/errors"
	"github.com/tmoller/specdex/internal/ops"
	"github.com/tmoller/specdex/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "specdex",
		Usage:   "Product spec field discovery and catalog browser",
		Version: Version,
		Commands: []*cli.Command{
			importCmd(db, cfg),
			discoverCmd(db, cfg),
			backfillCmd(db, cfg),
			fieldsCmd(db),
			categoriesCmd(db),
			productsCmd(db),
			showCmd(db),
			runsCmd(db),
			purgeCmd(db),
			serveCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// importCmd creates the import command.
func importCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import scraped products from a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(db, cfg, ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// discoverCmd creates the discover command.
func discoverCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "discover",
		Usage:     "Discover spec fields for a category (preview unless --persist)",
		ArgsUsage: "<category>",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "min-frequency", Aliases: []string{"f"}, Usage: "Minimum share of products a field must appear on, in (0, 1]"},
			&cli.IntFlag{Name: "sample-limit", Usage: "Cap on products sampled for discovery (0 = all)"},
			&cli.BoolFlag{Name: "persist", Usage: "Write the discovered schema and normalized specs"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("category argument is required"))
			}
			output, err := ops.Discover(db, cfg, ops.DiscoverInput{
				Category:     c.Args().First(),
				MinFrequency: c.Float64("min-frequency"),
				SampleLimit:  c.Int("sample-limit"),
				Persist:      c.Bool("persist"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// backfillCmd creates the backfill command.
func backfillCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "backfill",
		Usage:     "Run discovery and spec normalization over stored categories",
		ArgsUsage: "[category ...]",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "min-frequency", Aliases: []string{"f"}, Usage: "Minimum share of products a field must appear on, in (0, 1]"},
			&cli.IntFlag{Name: "sample-limit", Usage: "Cap on products sampled for discovery (0 = all)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Backfill(db, cfg, ops.BackfillInput{
				Categories:   c.Args().Slice(),
				MinFrequency: c.Float64("min-frequency"),
				SampleLimit:  c.Int("sample-limit"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// fieldsCmd creates the fields command.
func fieldsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "fields",
		Usage:     "List discovered spec fields for a category",
		ArgsUsage: "<category>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("category argument is required"))
			}
			output, err := ops.Fields(db, ops.FieldsInput{Category: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// categoriesCmd creates the categories command.
func categoriesCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "categories",
		Usage: "List categories with product and field counts",
		Action: func(c *cli.Context) error {
			output, err := ops.Categories(db)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// productsCmd creates the products command.
func productsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "products",
		Usage:     "List products in a category",
		ArgsUsage: "<category>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Filter by name (case-insensitive substring)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("category argument is required"))
			}
			output, err := ops.List(db, ops.ListInput{
				Category: c.Args().First(),
				Query:    c.String("query"),
				Limit:    c.Int("limit"),
				Offset:   c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one product with its raw and normalized specs",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Category, used together with --source-id"},
			&cli.StringFlag{Name: "source-id", Aliases: []string{"s"}, Usage: "Scraper-assigned product id"},
		},
		Action: func(c *cli.Context) error {
			input := ops.GetInput{}
			if c.NArg() > 0 {
				input.ID = c.Args().First()
			} else {
				input.Category = c.String("category")
				input.SourceID = c.String("source-id")
			}
			output, err := ops.Get(db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// runsCmd creates the runs command.
func runsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List recent backfill runs",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 10, Usage: "Maximum runs to return"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Runs(db, ops.RunsInput{Limit: c.Int("limit")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "purge",
		Usage:     "Delete all products in a category along with its schema",
		ArgsUsage: "<category>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("category argument is required"))
			}
			output, err := ops.Purge(db, ops.PurgeInput{Category: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the read-only catalog web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Aliases: []string{"b"}, Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8137, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(db, cfg, Version, c.String("bind"), c.Int("port"))
			if err := web.Run(srv); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if opErr, ok := err.(*errors.Error); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", opErr.Code, opErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
