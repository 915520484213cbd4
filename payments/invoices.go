package payments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/db"
	"github.com/flokiorg/lngateway/db/queries"
	"github.com/flokiorg/lngateway/events"
	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/logger"
	"github.com/flokiorg/lngateway/utils"
)

// CreateInvoice validates the amount against the payment bounds before any
// backend call; an invoice outside the bounds could never be used.
func (svc *paymentsService) CreateInvoice(ctx context.Context, amountSat uint64, memo string, expirySeconds int64) (*lnclient.Invoice, error) {
	logger.Logger.Debug().
		Uint64("amount_sat", amountSat).
		Str("memo", memo).
		Int64("expiry", expirySeconds).
		Msg("Making invoice")

	if err := svc.policy.ValidateInvoiceAmount(amountSat); err != nil {
		return nil, err
	}
	if expirySeconds < 0 {
		return nil, lnclient.NewError(lnclient.KindInvalidAmount, "expiry must not be negative")
	}
	if expirySeconds == 0 {
		expirySeconds = int64(svc.settings.DefaultInvoiceExpiry / time.Second)
	}

	backend := svc.registry.Active()
	lnClient, err := svc.registry.ResolveCapable(lnclient.CapInvoices)
	if err != nil {
		return nil, err
	}

	lnInvoice, err := lnClient.CreateInvoice(ctx, &lnclient.CreateInvoiceRequest{
		AmountSat:     amountSat,
		Memo:          memo,
		ExpirySeconds: expirySeconds,
	})
	if err != nil {
		logger.Logger.Error().Err(err).Str("backend", backend).Msg("Failed to create invoice")
		return nil, err
	}

	metadata, err := json.Marshal(map[string]interface{}{
		"backend_invoice_id": lnInvoice.ID,
	})
	if err != nil {
		return nil, err
	}

	createdAt := lnInvoice.CreatedAt
	if createdAt.IsZero() {
		createdAt = svc.clock.Now()
	}
	expiresAt := lnInvoice.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = createdAt.Add(time.Duration(expirySeconds) * time.Second)
	}

	record := db.Invoice{
		ID:             uuid.NewString(),
		Backend:        backend,
		PaymentHash:    lnInvoice.PaymentHash,
		PaymentRequest: lnInvoice.PaymentRequest,
		AmountSat:      amountSat,
		Memo:           memo,
		State:          string(lnclient.InvoiceStatusPending),
		ExpiresAt:      expiresAt,
		Metadata:       datatypes.JSON(metadata),
		CreatedAt:      createdAt,
	}
	if err := svc.db.Create(&record).Error; err != nil {
		logger.Logger.Error().Err(err).Str("payment_hash", record.PaymentHash).Msg("Failed to save invoice")
		return nil, err
	}

	invoice := toInvoice(&record)
	svc.eventPublisher.Publish(&events.Event{
		Event:      constants.EVENT_INVOICE_CREATED,
		Properties: invoice,
	})
	return invoice, nil
}

// LookupInvoice refreshes a pending invoice from the backend and expires it
// lazily once its expiry has passed.
func (svc *paymentsService) LookupInvoice(ctx context.Context, paymentHash string) (*lnclient.Invoice, error) {
	if err := validatePaymentHash(paymentHash); err != nil {
		return nil, err
	}

	record, err := queries.GetInvoiceByHash(svc.db, paymentHash)
	if err != nil {
		return nil, err
	}
	if record == nil {
		lnClient, err := svc.registry.ResolveCapable(lnclient.CapInvoices)
		if err != nil {
			return nil, err
		}
		return utils.RetryRead(ctx, "LookupInvoice", func(ctx context.Context) (*lnclient.Invoice, error) {
			return lnClient.LookupInvoice(ctx, paymentHash)
		})
	}

	return svc.refreshInvoice(ctx, record)
}

func (svc *paymentsService) refreshInvoice(ctx context.Context, record *db.Invoice) (*lnclient.Invoice, error) {
	if lnclient.InvoiceStatus(record.State).IsTerminal() {
		return toInvoice(record), nil
	}

	lnClient, err := svc.registry.ResolveName(record.Backend)
	if err == nil {
		remote, err := utils.RetryRead(ctx, "LookupInvoice", func(ctx context.Context) (*lnclient.Invoice, error) {
			return lnClient.LookupInvoice(ctx, record.PaymentHash)
		})
		if err != nil {
			logger.Logger.Warn().Err(err).Str("payment_hash", record.PaymentHash).Msg("Failed to refresh invoice from backend")
		} else if remote.Status != lnclient.InvoiceStatusPending {
			return svc.transitionInvoice(record, remote.Status, remote.SettledAt)
		}
	}

	if !svc.clock.Now().Before(record.ExpiresAt) {
		return svc.transitionInvoice(record, lnclient.InvoiceStatusExpired, nil)
	}
	return toInvoice(record), nil
}

// UpdateInvoiceStatus is the hook for status changes observed outside of
// polling: node subscriptions and webhook callbacks.
func (svc *paymentsService) UpdateInvoiceStatus(ctx context.Context, paymentHash string, status lnclient.InvoiceStatus, settledAt *time.Time) (*lnclient.Invoice, error) {
	if err := validatePaymentHash(paymentHash); err != nil {
		return nil, err
	}

	record, err := queries.GetInvoiceByHash(svc.db, paymentHash)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, lnclient.NewNotFoundError("invoice " + paymentHash)
	}
	return svc.transitionInvoice(record, status, settledAt)
}

func (svc *paymentsService) transitionInvoice(record *db.Invoice, status lnclient.InvoiceStatus, settledAt *time.Time) (*lnclient.Invoice, error) {
	current := lnclient.InvoiceStatus(record.State)
	if current == status {
		return toInvoice(record), nil
	}
	if current.IsTerminal() || status == lnclient.InvoiceStatusPending {
		return nil, lnclient.NewError(lnclient.KindInvalidTransition, "invoice cannot move from %s to %s", current, status)
	}

	updates := map[string]interface{}{
		"State": string(status),
	}
	if status == lnclient.InvoiceStatusSettled {
		if settledAt == nil {
			now := svc.clock.Now()
			settledAt = &now
		}
		updates["SettledAt"] = settledAt
	}

	result := svc.db.Model(&db.Invoice{}).
		Where("id = ? AND state = ?", record.ID, string(lnclient.InvoiceStatusPending)).
		Updates(updates)
	if result.Error != nil {
		logger.Logger.Error().Err(result.Error).Str("payment_hash", record.PaymentHash).Msg("Failed to update invoice")
		return nil, result.Error
	}

	var updated db.Invoice
	if err := svc.db.Limit(1).Find(&updated, &db.Invoice{ID: record.ID}).Error; err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 && lnclient.InvoiceStatus(updated.State) != status {
		// lost a race against another terminal transition
		return nil, lnclient.NewError(lnclient.KindInvalidTransition, "invoice cannot move from %s to %s", updated.State, status)
	}

	logger.Logger.Info().
		Str("payment_hash", record.PaymentHash).
		Str("from", string(current)).
		Str("status", string(status)).
		Msg("Invoice status changed")

	invoice := toInvoice(&updated)
	if status == lnclient.InvoiceStatusExpired && result.RowsAffected > 0 {
		svc.eventPublisher.Publish(&events.Event{
			Event:      constants.EVENT_INVOICE_EXPIRED,
			Properties: invoice,
		})
	}
	return invoice, nil
}
