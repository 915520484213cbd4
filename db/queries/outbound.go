package queries

import (
	"gorm.io/gorm"

	"github.com/flokiorg/lngateway/db"
	"github.com/flokiorg/lngateway/lnclient"
)

// unresolved outgoing payments still hold a share of the daily budget
var UnresolvedPaymentStates = []string{
	string(lnclient.PaymentStatePending),
	string(lnclient.PaymentStateInFlight),
	string(lnclient.PaymentStateTimedOut),
}

// TerminalPaymentStates never change once written.
var TerminalPaymentStates = []string{
	string(lnclient.PaymentStateSucceeded),
	string(lnclient.PaymentStateFailed),
}

func GetUnresolvedPayments(tx *gorm.DB) ([]db.Payment, error) {
	var payments []db.Payment
	err := tx.
		Where("state IN ?", UnresolvedPaymentStates).
		Order("id").
		Find(&payments).Error
	return payments, err
}

func GetUnresolvedOutboundSat(tx *gorm.DB) (uint64, error) {
	var pending struct {
		Sum uint64
	}
	err := tx.
		Table("payments").
		Select("COALESCE(SUM(amount_sat), 0) as sum").
		Where("state IN ?", UnresolvedPaymentStates).
		Scan(&pending).Error
	return pending.Sum, err
}

// GetLatestPayment returns the most recent payment for hash, or nil.
func GetLatestPayment(tx *gorm.DB, paymentHash string) (*db.Payment, error) {
	var payment db.Payment
	result := tx.
		Where(&db.Payment{PaymentHash: paymentHash}).
		Order("id desc").
		Limit(1).
		Find(&payment)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &payment, nil
}

func GetInvoiceByHash(tx *gorm.DB, paymentHash string) (*db.Invoice, error) {
	var invoice db.Invoice
	result := tx.
		Where(&db.Invoice{PaymentHash: paymentHash}).
		Order("created_at desc").
		Limit(1).
		Find(&invoice)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &invoice, nil
}
