package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	devAuth "github.com/MrEthical07/devAuth"
)

// Client calls a remote SessionService. It satisfies the same validator
// interface as *devAuth.Engine, so middleware.Guard can sit in front of a
// service that does not own the session stores.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// ValidateToken returns [devAuth.ErrInvalidToken] when the server rejects the
// token and the transport error otherwise.
func (c *Client) ValidateToken(ctx context.Context, token string) (*devAuth.Session, error) {
	out := new(structpb.Struct)
	err := c.cc.Invoke(ctx, ValidateTokenMethod, wrapperspb.String(token), out)
	if err != nil {
		if status.Code(err) == codes.Unauthenticated {
			return nil, devAuth.ErrInvalidToken
		}
		return nil, err
	}
	return structToSession(out), nil
}

func structToSession(s *structpb.Struct) *devAuth.Session {
	f := s.GetFields()
	return &devAuth.Session{
		UserID:      f["user_id"].GetStringValue(),
		Username:    f["username"].GetStringValue(),
		DeviceID:    f["device_id"].GetStringValue(),
		Roles:       fromList(f["roles"]),
		Permissions: fromList(f["permissions"]),
		IssuedAt:    int64(f["issued_at"].GetNumberValue()),
		ExpiresAt:   int64(f["expires_at"].GetNumberValue()),
	}
}

func fromList(v *structpb.Value) []string {
	items := v.GetListValue().GetValues()
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.GetStringValue())
	}
	return out
}
