// Package cli implements the hdsweep command-line interface.
//
// This package uses global variables to manage CLI state, which is the
// standard pattern for Cobra-based CLI applications. The globals are
// initialized in PersistentPreRunE.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mrz1836/hdsweep/internal/config"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

var (
	// Global flags
	cfgPath       string
	verbose       bool
	hostFlag      string
	portFlag      int
	transportFlag string
	noBatching    bool
	addressGap    int
	accountGap    int
	windowFlag    int
	destination   string
	broadcastTx   bool
	feeRate       int64
	passphrase    string
	askPassphrase bool

	// Global state initialized in PersistentPreRunE
	cfg *config.Config
	log *logrus.Entry
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "hdsweep [key]",
	Short: "Find and sweep funds reachable from an HD wallet key",
	Long: `hdsweep scans the standard derivation layouts of a BIP39 mnemonic or an
extended key against an Electrum server, reports every unspent output it
finds, and can sweep the whole balance to a destination address.

The key may be passed as the single argument or entered at a hidden
prompt. Without --address the tool only reports what it found; with
--address it builds and signs a sweep transaction, and with --broadcast
it also submits it.

Example:
  hdsweep "abandon abandon ... about"
  hdsweep xprv9s21... --address bc1q... --broadcast`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initGlobals()
	},
	RunE: runSweep,
}

//nolint:gochecknoinits // Cobra flag registration
func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&cfgPath, "config", "", "path to a YAML config file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&hostFlag, "host", "", "Electrum server host (default: random from the server list)")
	flags.IntVar(&portFlag, "port", 0, "Electrum server port (default: transport standard port)")
	flags.StringVar(&transportFlag, "transport", "", "connection transport: tcp or ssl")
	flags.BoolVar(&noBatching, "no-batching", false, "disable request pipelining")
	flags.IntVar(&addressGap, "address-gap", 0, "consecutive empty addresses before a chain scan stops")
	flags.IntVar(&accountGap, "account-gap", 0, "empty accounts explored past the last funded one")
	flags.IntVar(&windowFlag, "window", 0, "addresses probed per batched request")
	flags.StringVar(&destination, "address", "", "destination address to sweep to")
	flags.BoolVar(&broadcastTx, "broadcast", false, "broadcast the signed sweep transaction")
	flags.Int64Var(&feeRate, "fee-rate", 0, "fee rate in sat/vB (default: server estimate)")
	flags.StringVar(&passphrase, "passphrase", "", "BIP39 passphrase")
	flags.BoolVar(&askPassphrase, "ask-passphrase", false, "prompt for the BIP39 passphrase")
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(os.Stderr, err)
	}
	return err
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return sweeperr.ExitCode(err)
}

// initGlobals loads configuration and wires up logging. Precedence is
// flags over environment over file over defaults.
func initGlobals() error {
	var err error
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
	} else {
		cfg = config.Defaults()
	}

	config.ApplyEnvironment(cfg)

	if hostFlag != "" {
		cfg.Electrum.Host = hostFlag
	}
	if portFlag != 0 {
		cfg.Electrum.Port = portFlag
	}
	if transportFlag != "" {
		cfg.Electrum.Transport = transportFlag
	}
	if noBatching {
		cfg.Electrum.Batching = false
	}
	if addressGap != 0 {
		cfg.Scan.AddressGap = addressGap
	}
	if accountGap != 0 {
		cfg.Scan.AccountGap = accountGap
	}
	if windowFlag != 0 {
		cfg.Scan.Window = windowFlag
	}
	if feeRate != 0 {
		cfg.Sweep.FeeRate = feeRate
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(level)
	log = logrus.NewEntry(logger)

	return nil
}
