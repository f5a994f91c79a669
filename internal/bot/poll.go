package bot

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	minPollDelay = 1 * time.Second
	maxPollDelay = 15 * time.Second
)

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

// retryDelay picks the pause after a failed poll. Telegram answers 429 with a
// "retry after N" hint, which is honoured up to maxPollDelay.
func retryDelay(err error) time.Duration {
	d := minPollDelay
	s := strings.ToLower(err.Error())

	var ne net.Error
	switch {
	case strings.Contains(s, "too many requests"):
		d = 3 * time.Second
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				d = time.Duration(n) * time.Second
			}
		}
	case errors.As(err, &ne) && ne.Timeout():
		d = 2 * time.Second
	}

	return min(d, maxPollDelay)
}

// Run long-polls for updates until ctx is done.
func (b *Bot) Run(ctx context.Context, pollTimeout int) error {
	offset := 0
	b.logger.Info("telegram bot polling", zap.Int("timeout_seconds", pollTimeout))

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = pollTimeout

		updates, err := b.api.GetUpdates(u)
		if err != nil {
			d := retryDelay(err)
			b.logger.Warn("polling failed", zap.Error(err), zap.Duration("retry_in", d))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(d):
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			b.HandleUpdate(ctx, upd)
		}
	}
}
