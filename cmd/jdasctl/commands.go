package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/jdasdash/internal/config"
	"github.com/example/jdasdash/internal/dashboard"
	"github.com/example/jdasdash/internal/logger"
)

// cli holds what every subcommand shares. The service is built once the
// flags are parsed.
type cli struct {
	svc     *dashboard.Service
	top     int
	orderBy string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	rootCmd := &cobra.Command{
		Use:           "jdasctl",
		Short:         "Query the Dataverse tables behind the industry dashboard",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.New()
			if err != nil {
				return err
			}
			if err := logger.SetupWriter(conf.LogLevel, conf.LogFormat, cmd.ErrOrStderr()); err != nil {
				return err
			}
			c.svc, err = dashboard.FromConfig(conf)
			return err
		},
	}

	rootCmd.PersistentFlags().IntVarP(&c.top, "top", "n", 0, "Rows per table (0 uses DEFAULT_TOP)")
	rootCmd.PersistentFlags().StringVar(&c.orderBy, "orderby", "", "OData sort order, e.g. \"createdon desc\"")
	rootCmd.PersistentFlags().DurationVar(&c.timeout, "timeout", time.Minute, "Overall deadline")

	rootCmd.AddCommand(c.tablesCmd())
	rootCmd.AddCommand(c.rawCmd())
	rootCmd.AddCommand(c.cardsCmd())
	rootCmd.AddCommand(c.industryCmd())
	rootCmd.AddCommand(c.describeCmd())

	return rootCmd
}

func (c *cli) deadline(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), c.timeout)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List configured tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd, c.svc.ListTables())
		},
	}
}

func (c *cli) rawCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "raw <table>",
		Short: "Fetch unshaped rows of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.deadline(cmd)
			defer cancel()
			t, err := c.svc.FetchRawTable(ctx, args[0], c.top, c.orderBy, filter)
			if err != nil {
				return err
			}
			return printJSON(cmd, t)
		},
	}
	// The fragment is appended to the query as is.
	cmd.Flags().StringVar(&filter, "filter", "", "Raw OData fragment, e.g. \"$filter=statecode eq 0\"")
	return cmd
}

func (c *cli) cardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cards <table>",
		Short: "Fetch a table as normalized cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.deadline(cmd)
			defer cancel()
			t, err := c.svc.FetchNormalizedTable(ctx, args[0], c.top, c.orderBy)
			if err != nil {
				return err
			}
			return printJSON(cmd, t)
		},
	}
}

func (c *cli) industryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "industry [key]",
		Short: "Aggregate one industry, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.deadline(cmd)
			defer cancel()
			if len(args) == 1 {
				b, err := c.svc.FetchSingleIndustry(ctx, args[0], c.top, c.orderBy)
				if err != nil {
					return err
				}
				return printJSON(cmd, b)
			}
			u, err := c.svc.FetchIndustryUpdates(ctx, c.top, c.orderBy)
			if err != nil {
				return err
			}
			return printJSON(cmd, u)
		},
	}
}

func (c *cli) describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <logical-name>",
		Short: "Resolve a logical table name and show one sample row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.deadline(cmd)
			defer cancel()
			d, err := c.svc.DescribeResource(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, d)
		},
	}
}
