// ABOUTME: Operator identity carried through request handlers
// ABOUTME: Provides WithOperator/OperatorFromContext helpers

package auth

import "context"

type operatorKey struct{}

// WithOperator returns a context carrying the authenticated operator name.
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorKey{}, operator)
}

// OperatorFromContext returns the operator name, or "" for unauthenticated requests.
func OperatorFromContext(ctx context.Context) string {
	op, _ := ctx.Value(operatorKey{}).(string)
	return op
}
