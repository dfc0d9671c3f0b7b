package scan

import (
	"github.com/mrz1836/hdsweep/internal/derivation"
	"github.com/mrz1836/hdsweep/internal/descriptor"
)

// UTXO is one spendable output found during a scan, with the derivation
// entry needed to sign for it.
type UTXO struct {
	Descriptor string
	PathString string
	Address    string
	Script     descriptor.ScriptType
	TxID       string
	Vout       uint32
	Value      int64
	Height     int64

	Entry *derivation.Entry
}

// DescriptorFailure records a descriptor that could not be scanned.
type DescriptorFailure struct {
	Descriptor string
	Err        error
}

// Summary is the aggregated outcome of a full catalog scan.
type Summary struct {
	UTXOs            []UTXO
	Total            int64
	FundedAddresses  int
	AddressesScanned int
	Failed           []DescriptorFailure
}

// Aggregate merges per-descriptor results into one UTXO set. Several
// catalog entries can resolve to the same address; each address counts
// once, attributed to the earliest descriptor that found it.
func Aggregate(results []DescriptorResult) *Summary {
	summary := &Summary{}
	seen := make(map[string]bool)

	for _, result := range results {
		summary.AddressesScanned += result.AddressesScanned

		if result.Err != nil {
			summary.Failed = append(summary.Failed, DescriptorFailure{
				Descriptor: result.Descriptor,
				Err:        result.Err,
			})
			continue
		}

		for i := range result.Funded {
			funded := &result.Funded[i]
			addr := funded.Entry.Address.EncodeAddress()
			if seen[addr] {
				continue
			}
			seen[addr] = true
			summary.FundedAddresses++

			for _, u := range funded.Unspent {
				summary.UTXOs = append(summary.UTXOs, UTXO{
					Descriptor: result.Descriptor,
					PathString: funded.Entry.PathString,
					Address:    addr,
					Script:     funded.Entry.Script,
					TxID:       u.TxHash,
					Vout:       u.TxPos,
					Value:      u.Value,
					Height:     u.Height,
					Entry:      funded.Entry,
				})
				summary.Total += u.Value
			}
		}
	}
	return summary
}
