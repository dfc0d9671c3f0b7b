package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mrz1836/hdsweep/internal/descriptor"
	"github.com/mrz1836/hdsweep/internal/electrum"
	"github.com/mrz1836/hdsweep/internal/keys"
	"github.com/mrz1836/hdsweep/internal/scan"
	"github.com/mrz1836/hdsweep/internal/sweep"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	input, err := keyInput(args)
	if err != nil {
		return err
	}

	pass := passphrase
	if askPassphrase {
		if pass, err = promptSecret("BIP39 passphrase: "); err != nil {
			return err
		}
	}

	material, err := keys.Parse(input, pass)
	if err != nil {
		return err
	}
	defer material.Zero()

	fields := logrus.Fields{"source": material.Source().String()}
	if material.Language() != "" {
		fields["language"] = material.Language()
	}
	log.WithFields(fields).Info("key material parsed")

	// Fail on input problems before touching the network.
	if destination != "" {
		if _, err := btcutil.DecodeAddress(destination, &chaincfg.MainNetParams); err != nil {
			return sweeperr.Classify(sweeperr.ErrInvalidAddress, err, "cannot decode %q", destination)
		}
		if !material.CanSign() {
			return sweeperr.WithSuggestion(sweeperr.ErrReadOnlyKey,
				"sweeping needs a mnemonic or an extended private key")
		}
	}

	client, err := dialServer(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	summary := runScan(ctx, client, material)
	renderSummary(out, summary)

	if len(summary.UTXOs) == 0 {
		return sweeperr.WithSuggestion(sweeperr.ErrNoFundsFound,
			"try a larger --address-gap or --account-gap if this key should have funds")
	}
	if destination == "" {
		return nil
	}

	rate, err := resolveFeeRate(ctx, client, cfg.Sweep.FeeRate)
	if err != nil {
		return err
	}
	result, err := sweep.Build(summary.UTXOs, destination, rate)
	if err != nil {
		return err
	}
	if err := sweep.Verify(result, summary.UTXOs); err != nil {
		return err
	}
	renderSweep(out, result, rate)

	if !broadcastTx {
		fmt.Fprintln(out, "\nDry run: pass --broadcast to submit the transaction.")
		return nil
	}

	txID, err := client.TransactionBroadcast(ctx, result.Hex)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nBroadcast accepted: %s\n", txID)
	return nil
}

func dialServer(ctx context.Context) (*electrum.Client, error) {
	server := cfg.Electrum.PickServer()
	log.WithFields(logrus.Fields{
		"host":      server.Host,
		"port":      server.Port,
		"transport": server.Transport,
	}).Info("connecting")

	return electrum.Dial(ctx, electrum.Options{
		Host:              server.Host,
		Port:              server.Port,
		Transport:         server.Transport,
		Batching:          cfg.Electrum.Batching,
		RequestsPerSecond: cfg.Electrum.RequestsPerSecond,
		Retry: electrum.RetryConfig{
			MaxAttempts: cfg.Electrum.MaxRetries + 1,
			BaseDelay:   time.Second,
			MaxDelay:    4 * time.Second,
		},
		Logger: log,
	})
}

func runScan(ctx context.Context, client *electrum.Client, material *keys.KeyMaterial) *scan.Summary {
	engine := scan.NewEngine(client, scan.Options{
		Window:      cfg.Scan.Window,
		Concurrency: cfg.Scan.Concurrency,
		AddressGap:  cfg.Scan.AddressGap,
		AccountGap:  cfg.Scan.AccountGap,
		Logger:      log,
		Progress: func(u scan.ProgressUpdate) {
			log.WithFields(logrus.Fields{
				"descriptor": u.Descriptor,
				"account":    u.Account,
				"chain":      u.Chain,
				"scanned":    u.Scanned,
				"funded":     u.Funded,
			}).Debug("scanning")
		},
	})

	results := engine.Scan(ctx, material.Root(), descriptor.Catalog())
	return scan.Aggregate(results)
}

// resolveFeeRate picks the fee rate: explicit configuration first,
// otherwise the server's next-block estimate.
func resolveFeeRate(ctx context.Context, client *electrum.Client, configured int64) (int64, error) {
	if configured > 0 {
		return configured, nil
	}

	est, err := client.EstimateFee(ctx, 1)
	if err != nil {
		return 0, err
	}
	if est <= 0 {
		return 0, sweeperr.WithSuggestion(
			sweeperr.New("NO_FEE_ESTIMATE", "server has no fee estimate"),
			"pass --fee-rate to set the fee rate explicitly")
	}
	return est, nil
}

func renderSummary(w io.Writer, summary *scan.Summary) {
	fmt.Fprintf(w, "Scanned %d addresses.\n", summary.AddressesScanned)

	if len(summary.UTXOs) > 0 {
		fmt.Fprintln(w, "\nUnspent outputs:")
		for _, u := range summary.UTXOs {
			fmt.Fprintf(w, "  %-28s %s  %d sat  (%s)\n", u.PathString, u.Address, u.Value, u.Descriptor)
		}
	}

	if len(summary.Failed) > 0 {
		fmt.Fprintln(w, "\nSkipped layouts:")
		for _, f := range summary.Failed {
			fmt.Fprintf(w, "  %s: %v\n", f.Descriptor, f.Err)
		}
	}

	if len(summary.UTXOs) == 0 {
		fmt.Fprintln(w, "\nNo funds found.")
		return
	}
	fmt.Fprintf(w, "\nTotal: %d sat (%s) in %d outputs across %d addresses\n",
		summary.Total, btcutil.Amount(summary.Total), len(summary.UTXOs), summary.FundedAddresses)
}

func renderSweep(w io.Writer, result *sweep.Result, rate int64) {
	fmt.Fprintln(w, "\nSweep transaction:")
	fmt.Fprintf(w, "  inputs: %d spending %d sat\n", result.Inputs, result.Total)
	fmt.Fprintf(w, "  fee:    %d sat (%d sat/vB requested, %d vB)\n", result.Fee, rate, result.VSize)
	fmt.Fprintf(w, "  output: %d sat (%s) to %s\n", result.Output, btcutil.Amount(result.Output), destination)
	fmt.Fprintf(w, "  txid:   %s\n", result.TxID)
	fmt.Fprintf(w, "  raw:    %s\n", result.Hex)
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)

	var se *sweeperr.SweepError
	if sweeperr.As(err, &se) && se.Suggestion != "" {
		fmt.Fprintf(w, "Suggestion: %s\n", se.Suggestion)
	}
}
