package utils

import (
	"context"

	"room-booking/internal/data/entity"
)

type contextKey string

const (
	PrincipalKey contextKey = "principal"
	TokenKey     contextKey = "token"
)

func GetPrincipalFromContext(ctx context.Context) (entity.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(entity.Principal)
	if !ok || p.UserID == 0 {
		return entity.Principal{}, false
	}
	return p, true
}

func SetPrincipalContext(ctx context.Context, p entity.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// GetTokenFromContext mendapatkan session token dari context
func GetTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok && token != ""
}

func SetTokenContext(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, TokenKey, token)
}
