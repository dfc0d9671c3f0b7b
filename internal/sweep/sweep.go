// Package sweep assembles, signs, and serializes the transaction that
// moves every discovered output to one destination address.
package sweep

import (
	"bytes"
	"encoding/hex"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/mrz1836/hdsweep/internal/derivation"
	"github.com/mrz1836/hdsweep/internal/descriptor"
	"github.com/mrz1836/hdsweep/internal/scan"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// Result is a fully signed sweep transaction ready to broadcast.
type Result struct {
	Tx     *wire.MsgTx
	Hex    string
	TxID   string
	Inputs int
	Total  int64 // sum of all inputs
	Fee    int64
	Output int64 // Total minus Fee
	VSize  int64
}

// Build assembles and signs a transaction spending every UTXO to the
// destination address. The fee is feeRate satoshis per virtual byte of
// the worst-case transaction size.
func Build(utxos []scan.UTXO, destination string, feeRate int64) (*Result, error) {
	if len(utxos) == 0 {
		return nil, sweeperr.ErrNoFundsFound
	}
	if feeRate <= 0 {
		return nil, sweeperr.New("INVALID_FEE_RATE", "fee rate must be positive")
	}

	destAddr, err := btcutil.DecodeAddress(destination, &chaincfg.MainNetParams)
	if err != nil {
		return nil, sweeperr.Classify(sweeperr.ErrInvalidAddress, err, "cannot decode %q", destination)
	}
	if !destAddr.IsForNet(&chaincfg.MainNetParams) {
		return nil, sweeperr.WithDetails(sweeperr.ErrInvalidAddress,
			map[string]string{"address": destination, "reason": "wrong network"})
	}

	outputScript, err := txscript.PayToAddrScript(destAddr)
	if err != nil {
		return nil, sweeperr.Classify(sweeperr.ErrInvalidAddress, err, "unsupported destination script")
	}

	var total int64
	for _, u := range utxos {
		total += u.Value
	}

	vsize := estimateVSize(utxos, outputScript)
	fee := vsize * feeRate
	if fee >= total {
		return nil, sweeperr.WithDetails(sweeperr.ErrInsufficientFunds, map[string]string{
			"total": strconv.FormatInt(total, 10),
			"fee":   strconv.FormatInt(fee, 10),
		})
	}
	output := total - fee
	if output < DustLimit {
		return nil, sweeperr.WithDetails(sweeperr.ErrInsufficientFunds, map[string]string{
			"output":     strconv.FormatInt(output, 10),
			"dust_limit": strconv.Itoa(DustLimit),
		})
	}

	tx := wire.NewMsgTx(2)
	fetcher := txscript.NewMultiPrevOutFetcher(nil)

	for _, u := range utxos {
		txHash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return nil, sweeperr.Wrap(err, "invalid txid %q", u.TxID)
		}
		outPoint := wire.NewOutPoint(txHash, u.Vout)
		tx.AddTxIn(wire.NewTxIn(outPoint, nil, nil))
		fetcher.AddPrevOut(*outPoint, wire.NewTxOut(u.Value, u.Entry.OutputScript))
	}
	tx.AddTxOut(wire.NewTxOut(output, outputScript))

	if err := signInputs(tx, utxos, fetcher); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, sweeperr.Wrap(err, "failed to serialize transaction")
	}

	return &Result{
		Tx:     tx,
		Hex:    hex.EncodeToString(buf.Bytes()),
		TxID:   tx.TxHash().String(),
		Inputs: len(utxos),
		Total:  total,
		Fee:    fee,
		Output: output,
		VSize:  virtualSize(tx),
	}, nil
}

// signInputs signs every input according to its script type. Private
// keys are zeroed as soon as their signature is in place.
func signInputs(tx *wire.MsgTx, utxos []scan.UTXO, fetcher *txscript.MultiPrevOutFetcher) error {
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	for i, u := range utxos {
		priv, err := u.Entry.PrivateKey()
		if err != nil {
			return err
		}

		prevScript := u.Entry.OutputScript

		switch u.Script {
		case descriptor.Legacy:
			sigScript, serr := txscript.SignatureScript(tx, i, prevScript, txscript.SigHashAll, priv, true)
			if serr == nil {
				tx.TxIn[i].SignatureScript = sigScript
			}
			err = serr

		case descriptor.SegWit:
			witness, serr := txscript.WitnessSignature(tx, sigHashes, i, u.Value, prevScript, txscript.SigHashAll, priv, true)
			if serr == nil {
				tx.TxIn[i].Witness = witness
			}
			err = serr

		case descriptor.Nested:
			// The witness signs against the revealed P2WPKH script; the
			// signature script is a single push of that script.
			redeem, serr := derivation.NestedRedeemScript(priv.PubKey())
			if serr == nil {
				var witness wire.TxWitness
				witness, serr = txscript.WitnessSignature(tx, sigHashes, i, u.Value, redeem, txscript.SigHashAll, priv, true)
				if serr == nil {
					var sigScript []byte
					sigScript, serr = txscript.NewScriptBuilder().AddData(redeem).Script()
					if serr == nil {
						tx.TxIn[i].SignatureScript = sigScript
						tx.TxIn[i].Witness = witness
					}
				}
			}
			err = serr

		case descriptor.Taproot:
			witness, serr := txscript.TaprootWitnessSignature(tx, sigHashes, i, u.Value, prevScript, txscript.SigHashDefault, priv)
			if serr == nil {
				tx.TxIn[i].Witness = witness
			}
			err = serr
		}

		priv.Zero()
		if err != nil {
			return sweeperr.Wrap(err, "failed to sign input %d (%s)", i, u.PathString)
		}
	}
	return nil
}

// Verify executes every input script against its previous output. It
// catches signing mistakes before anything reaches the network.
func Verify(result *Result, utxos []scan.UTXO) error {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, u := range utxos {
		fetcher.AddPrevOut(result.Tx.TxIn[i].PreviousOutPoint, wire.NewTxOut(u.Value, u.Entry.OutputScript))
	}
	sigHashes := txscript.NewTxSigHashes(result.Tx, fetcher)

	for i, u := range utxos {
		vm, err := txscript.NewEngine(u.Entry.OutputScript, result.Tx, i,
			txscript.StandardVerifyFlags, nil, sigHashes, u.Value, fetcher)
		if err != nil {
			return sweeperr.Wrap(err, "cannot verify input %d", i)
		}
		if err := vm.Execute(); err != nil {
			return sweeperr.Wrap(err, "input %d does not validate", i)
		}
	}
	return nil
}

// virtualSize computes the BIP141 virtual size of a transaction.
func virtualSize(tx *wire.MsgTx) int64 {
	stripped := int64(tx.SerializeSizeStripped())
	full := int64(tx.SerializeSize())
	weight := stripped*3 + full
	return (weight + 3) / 4
}
