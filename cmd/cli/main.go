package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/amirasaad/fxrate/infra/initializer"
	"github.com/amirasaad/fxrate/pkg/config"
	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/amirasaad/fxrate/pkg/exchange/service"
	"github.com/shopspring/decimal"
)

const usage = `Usage: cli <command> [arguments]
Commands: sources, currencies <source>, rate <source> <from> <to>, convert <source> <from> <to> <kind> <amount>`

var errUsage = errors.New(usage)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := run(ctx, deps.Manager, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, mgr *service.Manager, args []string, out io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	switch cmd, args := args[0], args[1:]; cmd {
	case "sources":
		return enc.Encode(mgr.ListSources())
	case "currencies":
		if len(args) != 1 {
			return errUsage
		}
		codes, err := mgr.ListCurrencies(ctx, args[0])
		if err != nil {
			return err
		}
		return enc.Encode(codes)
	case "rate":
		if len(args) != 3 {
			return errUsage
		}
		from, to, err := parsePair(args[1], args[2])
		if err != nil {
			return err
		}
		d, err := mgr.GetRateDetail(ctx, args[0], from, to, service.DefaultConvertOptions())
		if err != nil {
			return err
		}
		return enc.Encode(d)
	case "convert":
		if len(args) != 5 {
			return errUsage
		}
		from, to, err := parsePair(args[1], args[2])
		if err != nil {
			return err
		}
		kind, err := core.ParseKind(args[3])
		if err != nil {
			return err
		}
		amount, err := decimal.NewFromString(args[4])
		if err != nil {
			return fmt.Errorf("%w: %v", core.ErrInvalidAmount, err)
		}
		opts := service.DefaultConvertOptions()
		opts.Amount = amount
		result, err := mgr.ConvertAmount(ctx, args[0], from, to, kind, opts)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, result.String())
		return err
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func parsePair(rawFrom, rawTo string) (from, to currency.Code, err error) {
	if from, err = currency.Parse(rawFrom); err != nil {
		return "", "", err
	}
	if to, err = currency.Parse(rawTo); err != nil {
		return "", "", err
	}
	return from, to, nil
}
