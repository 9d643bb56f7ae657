package retry

import (
	"context"
)

// SendFunc performs one network attempt for a request.
type SendFunc[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

// Retriever wraps an arbitrary network call so every failure surfaces as a
// *RequestError carrying the shared retry budget tracker. Classification and
// backoff decisions then happen in one place, at the network boundary.
type Retriever[Req, Resp any] struct {
	tracker *Tracker
	send    SendFunc[Req, Resp]
}

func NewRetriever[Req, Resp any](tracker *Tracker, send SendFunc[Req, Resp]) *Retriever[Req, Resp] {
	return &Retriever[Req, Resp]{
		tracker: tracker,
		send:    send,
	}
}

// Retrieve delegates to the send function, wrapping any failure as a
// classified request error.
func (r *Retriever[Req, Resp]) Retrieve(ctx context.Context, req Req) (Resp, error) {
	resp, err := r.send(ctx, req)
	if err != nil {
		var zero Resp
		return zero, NewRequestError(err, r.tracker)
	}

	return resp, nil
}

func (r *Retriever[Req, Resp]) Tracker() *Tracker {
	return r.tracker
}
