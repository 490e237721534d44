package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"project-chat/internal/models"
	"project-chat/internal/repositories"
)

// GetUserMethod is the user-service RPC returning a user profile.
const GetUserMethod = "/user.UserInternal/GetUser"

// UserClient is an IdentityStore backed by the user-service.
type UserClient struct {
	conn grpc.ClientConnInterface
}

// NewUserClient constructs the wrapper.
func NewUserClient(conn grpc.ClientConnInterface) *UserClient {
	return &UserClient{conn: conn}
}

// FindByID retrieves user details.
func (u *UserClient) FindByID(ctx context.Context, id string) (models.Identity, error) {
	resp := &structpb.Struct{}
	if err := u.conn.Invoke(ctx, GetUserMethod, wrapperspb.String(id), resp); err != nil {
		if status.Code(err) == codes.NotFound {
			return models.Identity{}, repositories.ErrUserNotFound
		}
		return models.Identity{}, err
	}

	fields := resp.GetFields()
	identity := models.Identity{
		ID:       stringField(fields["id"]),
		Username: fields["username"].GetStringValue(),
		FullName: fields["full_name"].GetStringValue(),
		Avatar:   fields["avatar"].GetStringValue(),
	}
	if identity.ID == "" {
		return models.Identity{}, repositories.ErrUserNotFound
	}
	return identity, nil
}

var _ repositories.IdentityStore = (*UserClient)(nil)
