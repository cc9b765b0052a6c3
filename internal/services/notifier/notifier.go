// Package notifier delivers operator-facing messages: purchase confirmations
// and the cause of every hard stop. Delivery is best-effort; a failed
// notification is logged and never escalates into the worker loops.
package notifier

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Purchase describes a completed buy for the confirmation message.
type Purchase struct {
	TargetName string
	GiftName   string
	Price      int64
	MaxPrice   int64
	Sender     string
	Recipient  string
	Link       string
}

// Notifier is the operator notification channel.
type Notifier interface {
	// PurchaseCompleted announces a verified purchase.
	PurchaseCompleted(ctx context.Context, p Purchase) error
	// HardStop announces that the engine deactivated itself and why.
	HardStop(ctx context.Context, cause string) error
}

// Log is a Notifier that only writes to the process log. Used when no bot
// token is configured and as the test double.
type Log struct {
	logger *zap.Logger
}

// NewLog returns a log-only notifier.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) PurchaseCompleted(_ context.Context, p Purchase) error {
	l.logger.Info("purchase completed",
		zap.String("target", p.TargetName),
		zap.String("gift", p.GiftName),
		zap.Int64("price", p.Price),
		zap.String("recipient", p.Recipient),
		zap.String("link", p.Link))
	return nil
}

func (l *Log) HardStop(_ context.Context, cause string) error {
	l.logger.Warn("engine hard stop", zap.String("cause", cause))
	return nil
}

func purchaseText(p Purchase) string {
	return fmt.Sprintf(
		"✅ <b>Gift sent!</b>\n\n"+
			"🎯 Target: %s\n"+
			"🎁 Gift: %s for ★%d\n"+
			"💰 Ceiling: ★%d\n"+
			"📤 Sender: %s\n"+
			"📥 Recipient: %s\n"+
			"🔗 Link: %s",
		p.TargetName, p.GiftName, p.Price, p.MaxPrice, p.Sender, p.Recipient, p.Link)
}

func hardStopText(cause string) string {
	return fmt.Sprintf(
		"⚠️ <b>Engine stopped</b>\n\n%s\n🚦 Status switched to 🔴 (inactive).", cause)
}
