// colporterctl reconciles the physical inventory of a program from the
// terminal. It talks to the inventory REST API (directly or through the
// gateway) with the caller's bearer token.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/tair/colporter/internal/inventory/domain"
	"github.com/tair/colporter/internal/reconcile"
	"github.com/tair/colporter/internal/reconcile/client"
	"github.com/tair/colporter/pkg/auth"
	"github.com/tair/colporter/pkg/logger"
)

var errUsage = errors.New("usage")

type options struct {
	server  string
	token   string
	program uint
	date    string
	json    bool
	yes     bool
	timeout time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %s\n", reconcile.Message(err))
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options

	flagSet := pflag.NewFlagSet("colporterctl", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.server, "server", envOr("COLPORTER_SERVER", "http://localhost:8000"), "inventory API base URL")
	flagSet.StringVar(&opts.token, "token", os.Getenv("COLPORTER_TOKEN"), "bearer token")
	flagSet.UintVarP(&opts.program, "program", "p", envUint("COLPORTER_PROGRAM"), "program id")
	flagSet.StringVarP(&opts.date, "date", "d", domain.Today(), "count date (YYYY-MM-DD)")
	flagSet.BoolVar(&opts.json, "json", false, "print JSON instead of tables")
	flagSet.BoolVarP(&opts.yes, "yes", "y", false, "apply a confirmation instead of previewing it")
	flagSet.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall request timeout")
	flagSet.Usage = func() { printHelp(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return errUsage
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printHelp(stderr, flagSet)
		return errUsage
	}
	if opts.program == 0 {
		return fmt.Errorf("%w: --program is required", domain.ErrValidation)
	}

	logger.Init(logger.Options{Service: "colporterctl", Level: "warn", Output: stderr})

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	store := reconcile.NewStore(
		client.NewInventoryClient(opts.server, opts.token),
		opts.program,
		capabilityFor(opts.token),
	)
	if err := store.Load(ctx, opts.date); err != nil {
		return err
	}

	p := newPrinter(stdout, opts.json)
	switch cmd := rest[0]; cmd {
	case "list":
		return p.lines(store.Date(), store.Lines())
	case "summary":
		return p.summary(store.Date(), store.Summary())
	case "save":
		if len(rest) != 3 {
			return usageError("save <bookId> <count>")
		}
		bookID, err := parseBookID(rest[1])
		if err != nil {
			return err
		}
		manual, err := strconv.Atoi(rest[2])
		if err != nil {
			return fmt.Errorf("%w: count must be a whole number", domain.ErrValidation)
		}
		count, err := store.SaveManualCount(ctx, bookID, manual)
		if err != nil {
			return err
		}
		return p.count("Saved", count, nil)
	case "confirm":
		if len(rest) != 2 {
			return usageError("confirm <bookId> [--yes]")
		}
		bookID, err := parseBookID(rest[1])
		if err != nil {
			return err
		}
		return confirm(ctx, store, p, bookID, opts.yes)
	default:
		return usageError(fmt.Sprintf("unknown command %q", cmd))
	}
}

func confirm(ctx context.Context, store *reconcile.Store, p *printer, bookID uint, apply bool) error {
	if !apply {
		if err := store.BeginConfirm(bookID); err != nil {
			return err
		}
		defer store.CancelConfirm(bookID)

		for _, l := range store.Lines() {
			if l.Book.ID != bookID {
				continue
			}
			manual := l.Row.Manual()
			fmt.Fprintf(p.out, "Confirming book %d (%s) will set its stock from %d to %d.\n",
				bookID, l.Book.Title, l.Book.Stock, *manual)
			fmt.Fprintln(p.out, "Run again with --yes to apply.")
		}
		return nil
	}

	count, book, err := store.ConfirmDiscrepancy(ctx, bookID)
	if err != nil {
		return err
	}
	return p.count("Confirmed", count, book)
}

// capabilityFor reads the role from the token so read-only users are
// refused locally. The server enforces the same rule.
func capabilityFor(token string) reconcile.Capability {
	claims, err := auth.ParseUnverified(token)
	if err != nil {
		return reconcile.CapabilityFor(auth.RoleColporter)
	}
	return reconcile.CapabilityFor(claims.Role)
}

func parseBookID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid book id %q", domain.ErrValidation, s)
	}
	return uint(id), nil
}

func usageError(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrValidation, msg)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envUint(key string) uint {
	n, err := strconv.ParseUint(os.Getenv(key), 10, 32)
	if err != nil {
		return 0
	}
	return uint(n)
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `Usage: colporterctl [flags] <command>

Commands:
  list                    show every active book with its count row
  summary                 show the summary cards for the date
  save <bookId> <count>   record a manual count
  confirm <bookId>        preview (or with --yes apply) a discrepancy confirmation

Flags:
%s`, flagSet.FlagUsages())
}
