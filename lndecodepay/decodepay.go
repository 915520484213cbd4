package decodepay

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/zpay32"
)

// longest HRP first so that "bcrt" wins over "bc"
var networks = []*chaincfg.Params{
	&chaincfg.RegressionNetParams,
	&chaincfg.SimNetParams,
	&chaincfg.TestNet3Params,
	&chaincfg.SigNetParams,
	&chaincfg.MainNetParams,
}

func Decodepay(bolt11 string) (Bolt11, error) {
	bolt11 = strings.ToLower(strings.TrimSpace(bolt11))
	bolt11 = strings.TrimPrefix(bolt11, "lightning:")
	if len(bolt11) < 4 || !strings.HasPrefix(bolt11, "ln") {
		return Bolt11{}, errors.New("bolt11 too short")
	}

	firstNumber := strings.IndexAny(bolt11, "1234567890")
	if firstNumber < 2 {
		return Bolt11{}, errors.New("invalid bolt11 invoice")
	}

	chain := chainParams(bolt11[2:firstNumber])

	inv, err := zpay32.Decode(bolt11, chain)
	if err != nil {
		return Bolt11{}, fmt.Errorf("zpay32 decoding failed: %w", err)
	}

	var msat int64
	if inv.MilliSat != nil {
		msat = int64(*inv.MilliSat)
	}

	var desc string
	if inv.Description != nil {
		desc = *inv.Description
	}

	var deschash string
	if inv.DescriptionHash != nil {
		dh := *inv.DescriptionHash
		deschash = hex.EncodeToString(dh[:])
	}

	var paymentHash string
	if inv.PaymentHash != nil {
		paymentHash = hex.EncodeToString(inv.PaymentHash[:])
	}

	var payee string
	if inv.Destination != nil {
		payee = hex.EncodeToString(inv.Destination.SerializeCompressed())
	}

	return Bolt11{
		MSat:               msat,
		PaymentHash:        paymentHash,
		Description:        desc,
		DescriptionHash:    deschash,
		Payee:              payee,
		CreatedAt:          int(inv.Timestamp.Unix()),
		Expiry:             int(inv.Expiry() / time.Second),
		MinFinalCLTVExpiry: int(inv.MinFinalCLTVExpiry()),
		Currency:           inv.Net.Bech32HRPSegwit,
	}, nil
}

// chainParams picks the network for the currency part of the invoice HRP.
func chainParams(currency string) *chaincfg.Params {
	for _, params := range networks {
		if currency == params.Bech32HRPSegwit {
			return params
		}
	}
	for _, params := range networks {
		if strings.HasPrefix(currency, params.Bech32HRPSegwit) {
			return params
		}
	}
	return &chaincfg.Params{
		Bech32HRPSegwit: currency,
	}
}

type Bolt11 struct {
	Currency           string `json:"currency"`
	CreatedAt          int    `json:"created_at"`
	Expiry             int    `json:"expiry"`
	Payee              string `json:"payee"`
	MSat               int64  `json:"msat"`
	Description        string `json:"description,omitempty"`
	DescriptionHash    string `json:"description_hash,omitempty"`
	PaymentHash        string `json:"payment_hash"`
	MinFinalCLTVExpiry int    `json:"min_final_cltv_expiry"`
}

// AmountSat rounds the invoice amount down to whole satoshis.
func (b Bolt11) AmountSat() uint64 {
	if b.MSat <= 0 {
		return 0
	}
	return uint64(b.MSat / 1000)
}

func (b Bolt11) ExpiresAt() time.Time {
	return time.Unix(int64(b.CreatedAt), 0).Add(time.Duration(b.Expiry) * time.Second)
}

func (b Bolt11) IsExpired(now time.Time) bool {
	return !now.Before(b.ExpiresAt())
}
