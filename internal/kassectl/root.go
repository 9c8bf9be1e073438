// Package kassectl implements the administrator command line: balances,
// settlements, bulk settle and exports against the configured backend.
package kassectl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tutorkasse/internal/auth"
	"tutorkasse/internal/core"
	"tutorkasse/internal/export"
	"tutorkasse/internal/ledger"
	"tutorkasse/internal/services"
)

var version = "1.0.0"

// Ledger is the part of the ledger service the commands use.
type Ledger interface {
	Snapshot(ctx context.Context, fresh bool) ([]core.Entry, error)
	Overview(ctx context.Context) services.Overview
	SettleAll(ctx context.Context) (int, error)
}

// Opener connects to the ledger. The returned func releases the backend.
type Opener func(ctx context.Context) (Ledger, func() error, error)

// ErrNotConfirmed is returned by settle-all without --yes.
var ErrNotConfirmed = errors.New("refusing to settle all entries without --yes")

// NewRootCommand builds the kassectl command tree.
func NewRootCommand(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:   "kassectl",
		Short: "Tutorkasse administration",
		Long: `kassectl reads and settles the tutor cash fund from the command line.

It uses the same environment as the server (DATA_BACKEND, SQLITE_DB_PATH,
GOOGLE_SPREADSHEET_ID, ...); a local .env file is loaded if present.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newBalanceCommand(open),
		newSettlementsCommand(open),
		newSettleAllCommand(open),
		newExportCommand(open),
		newHashPasswordCommand(),
	)
	return root
}

// withLedger opens the ledger, runs fn and releases the backend.
func withLedger(cmd *cobra.Command, open Opener, fn func(ctx context.Context, l Ledger) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	l, closeFn, err := open(ctx)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer func() {
		if cerr := closeFn(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, l)
}

func newBalanceCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Print the current cash position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, open, func(ctx context.Context, l Ledger) error {
				ov := l.Overview(ctx)
				if ov.Degraded {
					return fmt.Errorf("ledger unavailable: %s", ov.LoadError)
				}
				out := cmd.OutOrStdout()
				t := ov.Totals
				fmt.Fprintf(out, "Kassenstand:  %s\n", core.FormatEuro(t.Balance))
				fmt.Fprintf(out, "Einnahmen:    %s\n", core.FormatEuro(t.Income))
				fmt.Fprintf(out, "Kosten:       %s\n", core.FormatEuro(t.Cost))
				fmt.Fprintf(out, "Einträge:     %d (%d bestätigt, %d offen)\n", t.Entries, t.Confirmed, t.Unconfirmed)
				if len(t.ByCategory) > 0 {
					fmt.Fprintln(out)
					w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
					fmt.Fprintln(w, "Event\tKosten\tEinnahmen\t")
					for _, c := range t.ByCategory {
						fmt.Fprintf(w, "%s\t%s\t%s\t\n", c.Category, core.FormatEuro(c.Cost), core.FormatEuro(c.Income))
					}
					return w.Flush()
				}
				return nil
			})
		},
	}
}

func newSettlementsCommand(open Opener) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "settlements",
		Short: "List what each tutor gets from or owes to the fund",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, open, func(ctx context.Context, l Ledger) error {
				entries, err := l.Snapshot(ctx, true)
				if err != nil {
					return err
				}
				list := ledger.OpenSettlements(entries)
				if all {
					list = ledger.Settlements(entries)
				}
				return writeSettlements(cmd.OutOrStdout(), list)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include settled tutors")
	return cmd
}

func writeSettlements(out io.Writer, list []ledger.Settlement) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(out, "Alles abgerechnet.")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Tutor\tAuslagen\tEinnahmen\tSaldo\tStatus")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Person,
			core.FormatEuro(s.OwedToPerson), core.FormatEuro(s.OwedByPerson),
			core.FormatEuro(s.Net), s.Status())
	}
	return w.Flush()
}

func newSettleAllCommand(open Opener) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "settle-all",
		Short: "Mark every entry reimbursed and surplus handed over",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return ErrNotConfirmed
			}
			return withLedger(cmd, open, func(ctx context.Context, l Ledger) error {
				n, err := l.SettleAll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d Einträge abgerechnet.\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the bulk settlement")
	return cmd
}

func newExportCommand(open Opener) *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the ledger with running balance as CSV or XLSX",
		Example: `  kassectl export --format xlsx -o kasse.xlsx
  kassectl export > kasse.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			return withLedger(cmd, open, func(ctx context.Context, l Ledger) error {
				entries, err := l.Snapshot(ctx, true)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					return export.Write(cmd.OutOrStdout(), f, entries)
				}
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				if err := export.Write(file, f, entries); err != nil {
					_ = file.Close()
					return err
				}
				if err := file.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%d Einträge nach %s exportiert (%s)\n",
					len(entries), output, time.Now().Format("02.01.2006 15:04"))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", string(export.FormatCSV), "csv or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password PASSWORD",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}
