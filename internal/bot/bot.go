// Package bot exposes capture sessions over Telegram. Each chat is one session:
// a photo (or an image sent as a file) is the "file selected" event and the
// outcome comes back as a message with a button to scan another item.
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/fleveque/ecosort/internal/capture"
	"github.com/fleveque/ecosort/internal/model"
	"github.com/fleveque/ecosort/internal/session"
)

// callbackReset is the data of the "scan another" button.
const callbackReset = "reset"

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// Bot routes Telegram updates to sessions.
type Bot struct {
	api      API
	store    *session.Store
	client   *http.Client
	maxBytes int64
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates a bot. timeout bounds the wait for one classification.
func New(api API, store *session.Store, maxBytes int64, timeout time.Duration, logger *zap.Logger) *Bot {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Bot{
		api:      api,
		store:    store,
		client:   &http.Client{Timeout: 30 * time.Second},
		maxBytes: maxBytes,
		timeout:  timeout,
		logger:   logger,
	}
}

func chatKey(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

// HandleUpdate processes one update. Classification runs in the background;
// the result is sent when it arrives.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if cb := upd.CallbackQuery; cb != nil {
		b.handleCallback(cb)
		return
	}

	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	switch {
	case msg.IsCommand():
		b.handleCommand(msg)
	case len(msg.Photo) > 0:
		// Telegram sends several sizes; the last one is the largest.
		b.handleImage(ctx, msg.Chat.ID, msg.Photo[len(msg.Photo)-1].FileID)
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		b.handleImage(ctx, msg.Chat.ID, msg.Document.FileID)
	default:
		b.send(msg.Chat.ID, b.text(msg.Chat.ID, session.MsgPrompt))
	}
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		b.send(chatID, "♻️ EcoSort\n"+b.text(chatID, session.MsgPrompt))
	case "reset":
		b.reset(chatID)
	default:
		b.send(chatID, b.text(chatID, session.MsgInvalidAction))
	}
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	// Always answer the callback so the client stops its spinner.
	_, _ = b.api.Request(tgbotapi.NewCallback(cb.ID, ""))

	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	if cb.Data == callbackReset {
		b.reset(cb.Message.Chat.ID)
	}
}

func (b *Bot) reset(chatID int64) {
	s := b.store.GetOrCreate(chatKey(chatID))
	if err := s.Reset(); err != nil && !errors.Is(err, session.ErrInvalidTransition) {
		b.logger.Warn("reset failed", zap.Int64("chat", chatID), zap.Error(err))
	}
	b.send(chatID, session.Text(s.Language(), session.MsgPrompt))
}

// handleImage downloads the file and starts classification in the chat's session.
func (b *Bot) handleImage(ctx context.Context, chatID int64, fileID string) {
	s := b.store.GetOrCreate(chatKey(chatID))

	img, err := b.download(ctx, fileID)
	if err != nil {
		b.logger.Warn("downloading telegram file", zap.Int64("chat", chatID), zap.Error(err))
		b.send(chatID, session.Message(err, s.Language()))
		return
	}

	// A new photo starts a new cycle: leave a previous result or error first.
	switch s.Snapshot().State {
	case session.StateResult, session.StateError:
		_ = s.Reset()
	}

	views, cancel := s.Subscribe()
	if err := s.SelectFile(img); err != nil {
		cancel()
		b.send(chatID, session.Message(err, s.Language()))
		return
	}
	gen := s.Snapshot().Generation

	_, _ = b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	b.send(chatID, session.Text(s.Language(), session.MsgAnalyzing))

	go func() {
		defer cancel()
		b.deliver(chatID, s.Language(), gen, views)
	}()
}

// deliver waits for the outcome of generation gen and sends it. A reset in the
// meantime (Idle, or a newer generation) ends the wait silently.
func (b *Bot) deliver(chatID int64, lang string, gen uint64, views <-chan session.View) {
	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	for {
		select {
		case v, ok := <-views:
			if !ok {
				return
			}
			// The first view predates the upload.
			if v.Generation < gen {
				continue
			}
			if v.Generation > gen || v.State == session.StateIdle {
				return
			}
			switch v.State {
			case session.StateResult:
				b.sendResult(chatID, lang, v.Result)
				return
			case session.StateError:
				msg := session.Text(lang, session.MsgAnalysisFailed)
				if v.Error != nil {
					msg = v.Error.Message
				}
				b.sendWithReset(chatID, lang, "⚠️ "+msg)
				return
			}
		case <-timer.C:
			b.logger.Warn("gave up waiting for classification", zap.Int64("chat", chatID))
			return
		}
	}
}

func (b *Bot) sendResult(chatID int64, lang string, r *model.ClassificationResult) {
	if r == nil {
		return
	}
	b.sendWithReset(chatID, lang, FormatResult(*r, lang))
}

// FormatResult renders a result as plain message text.
func FormatResult(r model.ClassificationResult, lang string) string {
	style := model.CategoryStyles[r.Category]

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s · %d%% %s\n", style.Icon, r.Category.Label(lang), r.DisplayConfidence(), session.Text(lang, session.MsgConfidence))
	sb.WriteString(r.ItemName + "\n\n")
	sb.WriteString(session.Text(lang, session.MsgWhy) + "\n" + r.Explanation + "\n\n")
	sb.WriteString(session.Text(lang, session.MsgHowToDispose) + "\n" + r.DisposalInstruction)
	return sb.String()
}

// download fetches a Telegram file through its direct URL. The URL embeds the
// bot token, so it never goes to the log.
func (b *Bot) download(ctx context.Context, fileID string) (model.Image, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return model.Image{}, fmt.Errorf("%w: resolving file: %w", capture.ErrReadFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.Image{}, fmt.Errorf("%w: %w", capture.ErrReadFailure, err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return model.Image{}, fmt.Errorf("%w: downloading file", capture.ErrReadFailure)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Image{}, fmt.Errorf("%w: file download status %d", capture.ErrReadFailure, resp.StatusCode)
	}
	return capture.LoadFromReader(resp.Body, b.maxBytes)
}

func (b *Bot) text(chatID int64, key session.MessageKey) string {
	return session.Text(b.store.GetOrCreate(chatKey(chatID)).Language(), key)
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn("sending telegram message", zap.Int64("chat", chatID), zap.Error(err))
	}
}

func (b *Bot) sendWithReset(chatID int64, lang, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(session.Text(lang, session.MsgScanAnother), callbackReset),
	))
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("sending telegram message", zap.Int64("chat", chatID), zap.Error(err))
	}
}
