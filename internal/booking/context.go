package booking

import "context"

type idempotencyKeyCtx struct{}

// NewContextWithIdempotencyKey tags ctx with the key a payment request is deduplicated by.
func NewContextWithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

// IdempotencyKeyFromContext reports false when ctx carries no key or an empty one.
func IdempotencyKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyKeyCtx{}).(string)

	return key, ok && key != ""
}
