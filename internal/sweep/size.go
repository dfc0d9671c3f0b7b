package sweep

import (
	"github.com/mrz1836/hdsweep/internal/descriptor"
	"github.com/mrz1836/hdsweep/internal/scan"
)

// DustLimit is the minimum output value relayed by the network.
const DustLimit = 546

// Worst-case virtual sizes of one signed input per script type.
const (
	legacyInputVBytes  = 148
	nestedInputVBytes  = 91
	segwitInputVBytes  = 68
	taprootInputVBytes = 58
)

// estimateVSize returns a worst-case virtual size for a transaction
// spending the given inputs into a single output with the given script.
func estimateVSize(utxos []scan.UTXO, outputScript []byte) int64 {
	// version, input count, output count, locktime.
	size := int64(10)

	hasWitness := false
	for _, u := range utxos {
		switch u.Script {
		case descriptor.Legacy:
			size += legacyInputVBytes
		case descriptor.Nested:
			size += nestedInputVBytes
			hasWitness = true
		case descriptor.SegWit:
			size += segwitInputVBytes
			hasWitness = true
		case descriptor.Taproot:
			size += taprootInputVBytes
			hasWitness = true
		}
	}
	if hasWitness {
		// Marker and flag weigh two units, under one virtual byte.
		size++
	}

	// value, script length varint, script.
	size += int64(8 + 1 + len(outputScript))
	return size
}
