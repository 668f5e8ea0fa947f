package utils

import (
	"context"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"
)

type rqIDKey struct{}

// GetRequestIDFromCtx returns the request id carried by the context, empty
// when there is none.
func GetRequestIDFromCtx(ctx context.Context) string {
	rqID, _ := ctx.Value(rqIDKey{}).(string)
	return rqID
}

// CreateCtxWithRqID lifts the request id set by the logging middleware out of
// the telebot context. A handler reached without middleware gets a fresh id.
func CreateCtxWithRqID(c tele.Context) context.Context {
	rqID, ok := c.Get("rqID").(string)
	if !ok {
		rqID = uuid.NewString()
	}
	return context.WithValue(context.Background(), rqIDKey{}, rqID)
}

// NewCtxWithRqID is for code running outside telegram handlers, scheduler
// jobs mostly.
func NewCtxWithRqID() context.Context {
	return context.WithValue(context.Background(), rqIDKey{}, uuid.NewString())
}
