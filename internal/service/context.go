package service

import (
	"context"

	"github.com/noah-isme/institute-compass-api/pkg/middleware/requestid"
)

func requestIDFrom(ctx context.Context) string {
	return requestid.FromContext(ctx)
}
