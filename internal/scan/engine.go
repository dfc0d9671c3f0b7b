// Package scan walks the descriptor catalog against an Electrum server,
// applying gap limits per chain and per account, and aggregates the
// funded addresses it finds into a spendable UTXO set.
package scan

import (
	"context"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/sirupsen/logrus"

	"github.com/mrz1836/hdsweep/internal/derivation"
	"github.com/mrz1836/hdsweep/internal/descriptor"
	"github.com/mrz1836/hdsweep/internal/electrum"
)

const (
	// DefaultWindow is the number of addresses probed per batched request.
	DefaultWindow = 20

	// DefaultConcurrency is the number of descriptors scanned in parallel.
	DefaultConcurrency = 4
)

// Client is the slice of the Electrum protocol the engine needs.
type Client interface {
	ScriptHashGetHistoryBatch(ctx context.Context, scriptHashes []string) ([][]electrum.HistoryItem, error)
	ScriptHashListUnspentBatch(ctx context.Context, scriptHashes []string) ([][]electrum.Unspent, error)
}

// FundedAddress is a derived address with at least one history entry.
type FundedAddress struct {
	Entry   *derivation.Entry
	Account uint32
	Chain   uint32
	Index   uint32
	History []electrum.HistoryItem
	Unspent []electrum.Unspent
}

// DescriptorResult is the outcome of scanning one catalog entry. A
// failed descriptor carries its error here instead of aborting the
// whole run.
type DescriptorResult struct {
	Descriptor       string
	Funded           []FundedAddress
	AddressesScanned int
	Err              error
}

// ProgressUpdate reports scanning progress to the caller.
type ProgressUpdate struct {
	Descriptor string
	Account    uint32
	Chain      uint32
	Scanned    int
	Funded     int
}

// Options configures a scan run. Zero gap values defer to each
// descriptor's catalog defaults.
type Options struct {
	Window      int
	Concurrency int
	AddressGap  int
	AccountGap  int

	Progress func(ProgressUpdate)
	Logger   *logrus.Entry
}

// Engine runs catalog scans.
type Engine struct {
	client Client
	opts   Options
	log    *logrus.Entry
}

// NewEngine creates a scan engine.
func NewEngine(client Client, opts Options) *Engine {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{client: client, opts: opts, log: opts.Logger}
}

type scanJob struct {
	desc  *descriptor.Descriptor
	index int
}

type scanOutcome struct {
	result DescriptorResult
	index  int
}

// Scan walks every descriptor in the catalog and returns one result per
// entry, in catalog order. Descriptor failures are isolated: a
// descriptor that cannot be scanned reports an error in its slot while
// the rest complete normally.
func (e *Engine) Scan(ctx context.Context, root *hdkeychain.ExtendedKey, catalog []descriptor.Descriptor) []DescriptorResult {
	jobs := make(chan scanJob, len(catalog))
	outcomes := make(chan scanOutcome, len(catalog))

	workers := e.opts.Concurrency
	if workers > len(catalog) {
		workers = len(catalog)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go e.worker(ctx, root, jobs, outcomes, &wg)
	}

	for i := range catalog {
		jobs <- scanJob{desc: &catalog[i], index: i}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	results := make([]DescriptorResult, len(catalog))
	collected := make([]scanOutcome, 0, len(catalog))
	for outcome := range outcomes {
		collected = append(collected, outcome)
	}

	sort.Slice(collected, func(i, j int) bool { return collected[i].index < collected[j].index })
	for _, outcome := range collected {
		results[outcome.index] = outcome.result
	}
	return results
}

func (e *Engine) worker(ctx context.Context, root *hdkeychain.ExtendedKey, jobs <-chan scanJob, outcomes chan<- scanOutcome, wg *sync.WaitGroup) {
	defer wg.Done()

	for job := range jobs {
		if err := ctx.Err(); err != nil {
			outcomes <- scanOutcome{
				result: DescriptorResult{Descriptor: job.desc.Name, Err: err},
				index:  job.index,
			}
			continue
		}

		result := e.scanDescriptor(ctx, root, job.desc)
		if result.Err != nil {
			e.log.WithFields(logrus.Fields{
				"descriptor": job.desc.Name,
			}).WithError(result.Err).Warn("descriptor scan failed")
		}
		outcomes <- scanOutcome{result: result, index: job.index}
	}
}

// scanDescriptor walks accounts and chains for one descriptor. It stops
// adding accounts once an account comes up entirely unfunded past the
// account gap.
func (e *Engine) scanDescriptor(ctx context.Context, root *hdkeychain.ExtendedKey, d *descriptor.Descriptor) DescriptorResult {
	result := DescriptorResult{Descriptor: d.Name}

	addressGap := d.AddressGap
	if e.opts.AddressGap > 0 {
		addressGap = e.opts.AddressGap
	}
	accountGap := d.AccountGap
	if e.opts.AccountGap > 0 {
		accountGap = e.opts.AccountGap
	}

	for account := uint32(0); ; account++ {
		fundedBefore := len(result.Funded)

		for _, chainBranch := range d.Chains() {
			funded, scanned, err := e.scanChain(ctx, root, d, account, chainBranch, addressGap)
			result.AddressesScanned += scanned
			result.Funded = append(result.Funded, funded...)
			if err != nil {
				result.Err = err
				return result
			}
		}

		if !d.HasAccount() {
			break
		}
		if len(result.Funded) == fundedBefore && account >= uint32(accountGap) {
			break
		}
	}

	if err := e.attachUnspent(ctx, &result); err != nil {
		result.Err = err
	}
	return result
}

// scanChain probes one chain with a sliding window. The window is
// clamped to the gap limit's remaining allowance, so a batched scan probes exactly
// the addresses a one-by-one scan would and terminates on the same
// index.
func (e *Engine) scanChain(ctx context.Context, root *hdkeychain.ExtendedKey, d *descriptor.Descriptor, account, chainBranch uint32, addressGap int) ([]FundedAddress, int, error) {
	var funded []FundedAddress
	emptyRun := 0
	scanned := 0
	index := uint32(0)

	for emptyRun < addressGap {
		if err := ctx.Err(); err != nil {
			return funded, scanned, err
		}

		window := e.opts.Window
		if remaining := addressGap - emptyRun; window > remaining {
			window = remaining
		}

		entries := make([]*derivation.Entry, window)
		hashes := make([]string, window)
		for i := 0; i < window; i++ {
			entry, err := derivation.Derive(root, d, account, chainBranch, index+uint32(i))
			if err != nil {
				return funded, scanned, err
			}
			entries[i] = entry
			hashes[i] = entry.ScriptHash
		}

		histories, err := e.client.ScriptHashGetHistoryBatch(ctx, hashes)
		if err != nil {
			return funded, scanned, err
		}

		// Responses are applied in ascending index order; a funded
		// address anywhere in the window resets the empty run for
		// everything after it.
		for i, history := range histories {
			scanned++
			if len(history) == 0 {
				emptyRun++
				continue
			}
			emptyRun = 0
			funded = append(funded, FundedAddress{
				Entry:   entries[i],
				Account: account,
				Chain:   chainBranch,
				Index:   index + uint32(i),
				History: history,
			})
		}
		index += uint32(window)

		if e.opts.Progress != nil {
			e.opts.Progress(ProgressUpdate{
				Descriptor: d.Name,
				Account:    account,
				Chain:      chainBranch,
				Scanned:    scanned,
				Funded:     len(funded),
			})
		}
	}

	return funded, scanned, nil
}

// attachUnspent fetches the unspent outputs for every funded address in
// one batched request.
func (e *Engine) attachUnspent(ctx context.Context, result *DescriptorResult) error {
	if len(result.Funded) == 0 {
		return nil
	}

	hashes := make([]string, len(result.Funded))
	for i := range result.Funded {
		hashes[i] = result.Funded[i].Entry.ScriptHash
	}

	utxos, err := e.client.ScriptHashListUnspentBatch(ctx, hashes)
	if err != nil {
		return err
	}
	for i := range result.Funded {
		result.Funded[i].Unspent = utxos[i]
	}
	return nil
}
