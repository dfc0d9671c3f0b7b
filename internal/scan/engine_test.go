package scan

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/hdsweep/internal/derivation"
	"github.com/mrz1836/hdsweep/internal/descriptor"
	"github.com/mrz1836/hdsweep/internal/electrum"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// BIP39 seed for "abandon abandon ... about" with an empty passphrase.
const testSeedHex = "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc1" +
	"9a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4"

func testRoot(t *testing.T) *hdkeychain.ExtendedKey {
	t.Helper()

	seed, err := hex.DecodeString(testSeedHex)
	require.NoError(t, err)

	root, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)
	return root
}

func byName(t *testing.T, name string) *descriptor.Descriptor {
	t.Helper()

	catalog := descriptor.Catalog()
	for i := range catalog {
		if catalog[i].Name == name {
			return &catalog[i]
		}
	}
	t.Fatalf("descriptor %q not in catalog", name)
	return nil
}

// fakeClient answers history and unspent queries from a scripted map
// and counts every probed script hash.
type fakeClient struct {
	mu        sync.Mutex
	histories map[string][]electrum.HistoryItem
	unspent   map[string][]electrum.Unspent
	probes    int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		histories: make(map[string][]electrum.HistoryItem),
		unspent:   make(map[string][]electrum.Unspent),
	}
}

// fund marks one derived address as carrying a single UTXO.
func (f *fakeClient) fund(t *testing.T, root *hdkeychain.ExtendedKey, d *descriptor.Descriptor, account, chainBranch, index uint32, value int64) {
	t.Helper()

	entry, err := derivation.Derive(root, d, account, chainBranch, index)
	require.NoError(t, err)

	txID := fmt.Sprintf("tx-%s-%d-%d-%d", d.Name, account, chainBranch, index)
	f.histories[entry.ScriptHash] = []electrum.HistoryItem{{TxHash: txID, Height: 100}}
	f.unspent[entry.ScriptHash] = []electrum.Unspent{{TxHash: txID, TxPos: 0, Height: 100, Value: value}}
}

func (f *fakeClient) ScriptHashGetHistoryBatch(_ context.Context, scriptHashes []string) ([][]electrum.HistoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.probes += len(scriptHashes)
	out := make([][]electrum.HistoryItem, len(scriptHashes))
	for i, sh := range scriptHashes {
		out[i] = f.histories[sh]
	}
	return out, nil
}

func (f *fakeClient) ScriptHashListUnspentBatch(_ context.Context, scriptHashes []string) ([][]electrum.Unspent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([][]electrum.Unspent, len(scriptHashes))
	for i, sh := range scriptHashes {
		out[i] = f.unspent[sh]
	}
	return out, nil
}

func (f *fakeClient) probeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes
}

// A chain with no funded addresses is probed exactly gap-limit times,
// no matter how large the batching window is.
func TestEmptyChainProbesExactlyGapLimit(t *testing.T) {
	client := newFakeClient()
	engine := NewEngine(client, Options{Window: 50, Concurrency: 1, AddressGap: 5})

	// core-segwit has a single chain and no account level.
	results := engine.Scan(context.Background(), testRoot(t), []descriptor.Descriptor{*byName(t, "core-segwit")})

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Empty(t, results[0].Funded)
	assert.Equal(t, 5, client.probeCount())
}

// A funded address just inside the gap extends the scan by a full gap
// beyond it: with gap 5 and index 4 funded, indexes 0-9 are probed.
func TestFundedAddressExtendsScanByFullGap(t *testing.T) {
	root := testRoot(t)
	d := byName(t, "core-segwit")

	client := newFakeClient()
	client.fund(t, root, d, 0, 0, 4, 12345)

	engine := NewEngine(client, Options{Window: 50, Concurrency: 1, AddressGap: 5})
	results := engine.Scan(context.Background(), root, []descriptor.Descriptor{*d})

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Len(t, results[0].Funded, 1)
	assert.Equal(t, uint32(4), results[0].Funded[0].Index)
	assert.Equal(t, int64(12345), results[0].Funded[0].Unspent[0].Value)
	assert.Equal(t, 10, client.probeCount())
}

// The window size is a transport detail: any window must probe the same
// addresses and find the same funded set as a one-by-one scan.
func TestWindowSizeDoesNotChangeResults(t *testing.T) {
	root := testRoot(t)
	d := byName(t, "core-segwit")

	var wantProbes int
	var wantIndexes []uint32

	for _, window := range []int{1, 3, 20} {
		client := newFakeClient()
		for _, idx := range []uint32{0, 4, 7} {
			client.fund(t, root, d, 0, 0, idx, 1000)
		}

		engine := NewEngine(client, Options{Window: window, Concurrency: 1, AddressGap: 5})
		results := engine.Scan(context.Background(), root, []descriptor.Descriptor{*d})

		require.NoError(t, results[0].Err)
		indexes := make([]uint32, 0, len(results[0].Funded))
		for _, f := range results[0].Funded {
			indexes = append(indexes, f.Index)
		}

		if window == 1 {
			wantProbes = client.probeCount()
			wantIndexes = indexes
			assert.Equal(t, []uint32{0, 4, 7}, indexes)
			continue
		}
		assert.Equal(t, wantProbes, client.probeCount(), "window %d", window)
		assert.Equal(t, wantIndexes, indexes, "window %d", window)
	}
}

// Accounts are scanned upward until one comes up empty past the account
// gap. With accounts 0 and 1 funded, account 2 is probed and ends the
// descriptor.
func TestAccountScanStopsAfterEmptyAccount(t *testing.T) {
	root := testRoot(t)
	d := byName(t, "bip84")

	client := newFakeClient()
	client.fund(t, root, d, 0, 0, 0, 50000)
	client.fund(t, root, d, 1, 0, 0, 30000)

	engine := NewEngine(client, Options{Window: 20, Concurrency: 1})
	results := engine.Scan(context.Background(), root, []descriptor.Descriptor{*d})

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Len(t, results[0].Funded, 2)
	assert.Equal(t, uint32(0), results[0].Funded[0].Account)
	assert.Equal(t, uint32(1), results[0].Funded[1].Account)

	// Funded chains probe 21 addresses (index 0 plus a full gap), empty
	// chains probe 20. Accounts 0 and 1: 21+20 each; account 2: 20+20.
	assert.Equal(t, 122, client.probeCount())
}

// One failing descriptor must not take down the rest of the catalog.
func TestWatchOnlyIsolatesHardenedDescriptors(t *testing.T) {
	pub, err := testRoot(t).Neuter()
	require.NoError(t, err)

	watch := descriptor.Descriptor{
		Name:       "watch",
		Template:   []descriptor.Segment{{Kind: descriptor.KindIndex}},
		Script:     descriptor.SegWit,
		AddressGap: 5,
	}

	client := newFakeClient()
	client.fund(t, pub, &watch, 0, 0, 0, 7000)

	catalog := []descriptor.Descriptor{*byName(t, "bip84"), watch}
	engine := NewEngine(client, Options{Window: 20, Concurrency: 2})
	results := engine.Scan(context.Background(), pub, catalog)

	require.Len(t, results, 2)
	require.Error(t, results[0].Err)
	assert.True(t, sweeperr.Is(results[0].Err, sweeperr.ErrHardenedFromPublic))

	require.NoError(t, results[1].Err)
	require.Len(t, results[1].Funded, 1)
	assert.Equal(t, int64(7000), results[1].Funded[0].Unspent[0].Value)
}

func TestScanResultsInCatalogOrder(t *testing.T) {
	client := newFakeClient()
	engine := NewEngine(client, Options{Window: 20, Concurrency: 4, AddressGap: 2})

	catalog := descriptor.Catalog()
	results := engine.Scan(context.Background(), testRoot(t), catalog)

	require.Len(t, results, len(catalog))
	for i := range catalog {
		assert.Equal(t, catalog[i].Name, results[i].Descriptor)
	}
}

func TestScanReportsProgress(t *testing.T) {
	root := testRoot(t)
	d := byName(t, "core-segwit")

	client := newFakeClient()
	client.fund(t, root, d, 0, 0, 0, 1000)

	var updates []ProgressUpdate
	engine := NewEngine(client, Options{
		Window:      20,
		Concurrency: 1,
		AddressGap:  5,
		Progress:    func(u ProgressUpdate) { updates = append(updates, u) },
	})
	engine.Scan(context.Background(), root, []descriptor.Descriptor{*d})

	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, "core-segwit", last.Descriptor)
	assert.Equal(t, 1, last.Funded)
}
