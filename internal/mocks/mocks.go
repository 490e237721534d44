package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"project-chat/internal/auth"
	"project-chat/internal/membership"
	"project-chat/internal/models"
	"project-chat/internal/repositories"
)

type MembershipStoreMock struct {
	mock.Mock
}

func (m *MembershipStoreMock) IsMember(ctx context.Context, userID, roomID string) (bool, error) {
	args := m.Called(ctx, userID, roomID)
	return args.Bool(0), args.Error(1)
}

type IdentityStoreMock struct {
	mock.Mock
}

func (m *IdentityStoreMock) FindByID(ctx context.Context, id string) (models.Identity, error) {
	args := m.Called(ctx, id)
	var identity models.Identity
	if val := args.Get(0); val != nil {
		identity = val.(models.Identity)
	}
	return identity, args.Error(1)
}

type MessageLogMock struct {
	mock.Mock
}

func (m *MessageLogMock) Append(ctx context.Context, msg models.NewMessage) (models.Message, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageLogMock) MarkSeen(ctx context.Context, roomID, messageID, userID string) (models.Message, bool, error) {
	args := m.Called(ctx, roomID, messageID, userID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Bool(1), args.Error(2)
}

func (m *MessageLogMock) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageLogMock) ListBefore(ctx context.Context, roomID string, cursor repositories.Cursor, limit int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, cursor, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

type TokenValidatorMock struct {
	mock.Mock
}

func (m *TokenValidatorMock) ValidateToken(ctx context.Context, token string) (auth.Claims, error) {
	args := m.Called(ctx, token)
	var claims auth.Claims
	if val := args.Get(0); val != nil {
		claims = val.(auth.Claims)
	}
	return claims, args.Error(1)
}

type IdentityResolverMock struct {
	mock.Mock
}

func (m *IdentityResolverMock) ResolveIdentity(ctx context.Context, token string) (models.Identity, error) {
	args := m.Called(ctx, token)
	var identity models.Identity
	if val := args.Get(0); val != nil {
		identity = val.(models.Identity)
	}
	return identity, args.Error(1)
}

type MembershipCheckerMock struct {
	mock.Mock
}

func (m *MembershipCheckerMock) IsMember(ctx context.Context, userID, roomID string) bool {
	args := m.Called(ctx, userID, roomID)
	return args.Bool(0)
}

var _ repositories.MembershipStore = (*MembershipStoreMock)(nil)
var _ repositories.IdentityStore = (*IdentityStoreMock)(nil)
var _ repositories.MessageLog = (*MessageLogMock)(nil)
var _ auth.TokenValidator = (*TokenValidatorMock)(nil)
var _ auth.IdentityResolver = (*IdentityResolverMock)(nil)
var _ membership.Checker = (*MembershipCheckerMock)(nil)
