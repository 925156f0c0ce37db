package telegram_api

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"go.uber.org/zap"

	"chesed/internal/importer"
	"chesed/internal/models"
)

// Notifier posts admin notifications to one chat. A nil *Notifier is valid
// and sends nothing.
type Notifier struct {
	sender   Sender
	chatID   int64
	adminURL string
	logger   *zap.Logger
}

// NewNotifier creates a notifier for chatID. publicURL, when set, adds a
// button that opens the admin page.
func NewNotifier(sender Sender, chatID int64, publicURL string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Notifier{sender: sender, chatID: chatID, logger: logger}
	if publicURL != "" {
		n.adminURL = strings.TrimRight(publicURL, "/") + "/webapp/admin.html"
	}
	return n
}

// NotifyEditRequest announces a new edit request with its diff.
func (n *Notifier) NotifyEditRequest(ctx context.Context, v models.EditRequestView) error {
	if n == nil {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<b>בקשת עריכה חדשה</b>\n")
	fmt.Fprintf(&b, "מאת: %s\n", html.EscapeString(v.RequesterLabel))
	if v.Delivery != nil {
		fmt.Fprintf(&b, "משלוח: %s, %s\n", html.EscapeString(v.Delivery.RecipientName), html.EscapeString(v.Delivery.Address.Street))
	}
	for _, d := range v.Diff {
		fmt.Fprintf(&b, "• %s: %s → %s\n", html.EscapeString(d.Field), html.EscapeString(orDash(d.Old)), html.EscapeString(orDash(d.New)))
	}
	return n.send(ctx, b.String())
}

// NotifyImport reports a finished bulk import.
func (n *Notifier) NotifyImport(ctx context.Context, fileName, by string, res importer.Result) error {
	if n == nil {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<b>ייבוא הושלם</b>\n")
	fmt.Fprintf(&b, "קובץ: %s\nע״י: %s\n", html.EscapeString(fileName), html.EscapeString(by))
	fmt.Fprintf(&b, "נוספו: %d, נכשלו: %d, שכונות: %d", res.Created, res.Failed, res.Neighborhoods)
	if len(res.Errors) > 0 {
		last := res.Errors[len(res.Errors)-1]
		fmt.Fprintf(&b, "\nשגיאה אחרונה (שורה %d): %s", last.Row, html.EscapeString(last.Reason))
	}
	return n.send(ctx, b.String())
}

func (n *Notifier) send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if n.adminURL != "" {
		keyboard := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("פתח ניהול", n.adminURL),
			),
		)
		msg.ReplyMarkup = keyboard
	}
	if _, err := n.sender.Send(msg); err != nil {
		n.logger.Error("telegram send failed", zap.Int64("chat_id", n.chatID), zap.Error(err))
		return fmt.Errorf("send telegram notification: %w", err)
	}
	return nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return s
}
