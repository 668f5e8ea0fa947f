package middleware

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"
)

// Logger tags every update with a request id and logs its timing. Handlers
// pick the id up through utils.CreateCtxWithRqID so one update is traceable
// through all layers.
func Logger() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()

			rqID := uuid.NewString()
			c.Set("rqID", rqID)

			attrs := []any{slog.String("rqID", rqID)}
			if c.Chat() != nil {
				attrs = append(attrs, slog.Int64("chatID", c.Chat().ID))
			}

			slog.Info("start request", attrs...)

			defer func() {
				attrs = append(attrs, slog.Duration("duration", time.Since(start)))
				slog.Info("request finished", attrs...)
			}()

			return next(c)
		}
	}
}
