package tests

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
	"github.com/stretchr/testify/require"
)

// NewTestInvoice signs a regtest invoice with a throwaway node key. A zero
// amount gives an amountless invoice.
func NewTestInvoice(t *testing.T, paymentHash string, amountSat uint64, createdAt time.Time, expiry time.Duration) string {
	t.Helper()

	hashBytes, err := hex.DecodeString(paymentHash)
	require.NoError(t, err)
	require.Len(t, hashBytes, 32)
	var hash [32]byte
	copy(hash[:], hashBytes)

	options := []func(*zpay32.Invoice){
		zpay32.Description("test invoice"),
		zpay32.Expiry(expiry),
	}
	if amountSat > 0 {
		options = append(options, zpay32.Amount(lnwire.MilliSatoshi(amountSat*1000)))
	}

	invoice, err := zpay32.NewInvoice(&chaincfg.RegressionNetParams, hash, createdAt, options...)
	require.NoError(t, err)

	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	bolt11, err := invoice.Encode(zpay32.MessageSigner{
		SignCompact: func(msg []byte) ([]byte, error) {
			return ecdsa.SignCompact(privKey, chainhash.HashB(msg), true)
		},
	})
	require.NoError(t, err)
	return bolt11
}
