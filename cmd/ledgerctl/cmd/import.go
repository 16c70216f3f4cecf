package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ledgerbook/ledgerbook/internal/accounting"
	"github.com/ledgerbook/ledgerbook/internal/fixture"
	"github.com/ledgerbook/ledgerbook/internal/platform/cache"
	"github.com/ledgerbook/ledgerbook/internal/reports"
)

func newImportCommand(opts *options) *cobra.Command {
	var bumpCache bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Load a YAML ledger into the SQLite file",
		Long: `Load companies, accounts, journals, contacts and invoices from a YAML file.

Journal source ids are derived from the file position, so importing the
same journals twice fails instead of doubling balances. With --bump-cache
every committed write expires the report cache shared through --redis.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fh, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer fh.Close()
			doc, err := fixture.Load(fh)
			if err != nil {
				return err
			}

			store, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			ledger := accounting.NewService(store, opts.log())
			var reportCache *reports.Cache
			if bumpCache {
				client, err := cache.New(cmd.Context(), opts.redisAddr)
				if err != nil {
					return err
				}
				defer client.Close()
				reportCache = reports.NewCache(client, 0)
				ledger.OnCommit(reportCache.Invalidate)
			}

			sum, err := doc.Apply(cmd.Context(), ledger, store)
			if err != nil {
				return err
			}
			if err := reportCache.Invalidate(cmd.Context()); err != nil {
				opts.log().Warn("report cache not invalidated", slog.Any("error", err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d companies, %d accounts, %d journals, %d contacts, %d invoices\n",
				sum.Companies, sum.Accounts, sum.Journals, sum.Contacts, sum.Invoices)
			return nil
		},
	}
	cmd.Flags().BoolVar(&bumpCache, "bump-cache", false, "expire cached reports in Redis after each write")
	return cmd
}

func newCompaniesCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "companies",
		Short: "List companies with a chart of accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			ids, err := store.ListCompanyIDs(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}
