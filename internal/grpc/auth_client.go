package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"project-chat/internal/auth"
)

// ValidateTokenMethod is the auth-service RPC used to verify credentials.
const ValidateTokenMethod = "/auth.AuthService/ValidateToken"

// AuthClient validates credentials against the remote auth-service. The RPC
// takes the raw token as a StringValue and answers with a Struct holding
// valid, user_id and expires_at (unix seconds).
type AuthClient struct {
	conn grpc.ClientConnInterface
}

// NewAuthClient constructs the wrapper.
func NewAuthClient(conn grpc.ClientConnInterface) *AuthClient {
	return &AuthClient{conn: conn}
}

// ValidateToken verifies the JWT and returns the authenticated subject.
func (a *AuthClient) ValidateToken(ctx context.Context, token string) (auth.Claims, error) {
	resp := &structpb.Struct{}
	if err := a.conn.Invoke(ctx, ValidateTokenMethod, wrapperspb.String(token), resp); err != nil {
		switch status.Code(err) {
		case codes.Unauthenticated, codes.InvalidArgument, codes.PermissionDenied:
			return auth.Claims{}, fmt.Errorf("%w: %s", auth.ErrInvalidToken, status.Convert(err).Message())
		}
		return auth.Claims{}, err
	}

	fields := resp.GetFields()
	if !fields["valid"].GetBoolValue() {
		return auth.Claims{}, auth.ErrInvalidToken
	}

	subject := stringField(fields["user_id"])
	if subject == "" {
		return auth.Claims{}, errors.Join(auth.ErrInvalidToken, errors.New("missing user id"))
	}

	claims := auth.Claims{Subject: subject}
	if exp := fields["expires_at"].GetNumberValue(); exp > 0 {
		claims.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return claims, nil
}

// user ids arrive as strings from newer auth-service builds and as numbers
// from older ones
func stringField(v *structpb.Value) string {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue
	case *structpb.Value_NumberValue:
		return fmt.Sprintf("%.0f", kind.NumberValue)
	default:
		return ""
	}
}
