package storage

import "context"

// ResponseStore is the durable home of completed responses. Save must be
// durable before a subsequent ListAll observes the record; ListAll makes no
// ordering promise.
type ResponseStore interface {
	Save(ctx context.Context, response *Response) error
	ListAll(ctx context.Context) ([]Response, error)
	Count(ctx context.Context) (int64, error)
}
