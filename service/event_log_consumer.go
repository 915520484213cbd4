package service

import (
	"context"

	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/events"
	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/logger"
)

// eventLogConsumer writes an audit line for every money or channel movement.
type eventLogConsumer struct {
	events.EventSubscriber
}

func (c *eventLogConsumer) ConsumeEvent(ctx context.Context, event *events.Event, globalProperties map[string]interface{}) {
	switch event.Event {
	case constants.EVENT_PAYMENT_SUCCEEDED, constants.EVENT_PAYMENT_FAILED, constants.EVENT_PAYMENT_TIMED_OUT:
		payment, ok := event.Properties.(*lnclient.Payment)
		if !ok {
			logger.Logger.Error().Interface("event", event).Msg("Failed to cast event.Properties to payment")
			return
		}
		logger.Logger.Info().
			Str("event", event.Event).
			Str("payment_hash", payment.PaymentHash).
			Uint64("amount_sat", payment.AmountSat).
			Uint64("fee_sat", payment.FeeSat).
			Str("status", string(payment.Status)).
			Interface("node_id", globalProperties["node_id"]).
			Msg("Payment event")
	case constants.EVENT_INVOICE_CREATED, constants.EVENT_INVOICE_EXPIRED:
		invoice, ok := event.Properties.(*lnclient.Invoice)
		if !ok {
			logger.Logger.Error().Interface("event", event).Msg("Failed to cast event.Properties to invoice")
			return
		}
		logger.Logger.Info().
			Str("event", event.Event).
			Str("payment_hash", invoice.PaymentHash).
			Uint64("amount_sat", invoice.AmountSat).
			Str("status", string(invoice.Status)).
			Msg("Invoice event")
	case constants.EVENT_INVOICE_SETTLED, constants.EVENT_INVOICE_CANCELLED:
		update, ok := event.Properties.(*lnclient.InvoiceUpdate)
		if !ok {
			logger.Logger.Error().Interface("event", event).Msg("Failed to cast event.Properties to invoice update")
			return
		}
		logger.Logger.Info().
			Str("event", event.Event).
			Str("backend", update.Backend).
			Str("payment_hash", update.PaymentHash).
			Msg("Invoice update")
	case constants.EVENT_CHANNEL_OPENED, constants.EVENT_CHANNEL_CLOSED,
		constants.EVENT_GATEWAY_STARTED, constants.EVENT_GATEWAY_STOPPED:
		logger.Logger.Info().
			Str("event", event.Event).
			Interface("properties", event.Properties).
			Msg("Gateway event")
	}
}
