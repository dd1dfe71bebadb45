package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/types"
)

// Client calls rollcall.v1.Attendance. Submit has the same shape as the
// service method, so a Client can drive a scanning session directly.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial opens a plaintext connection to target. The caller closes it.
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	return grpc.NewClient(target, opts...)
}

func (c *Client) Submit(ctx context.Context, req types.EventRequest) (types.EventResponse, error) {
	var resp types.EventResponse
	err := c.call(ctx, "SubmitEvent", req, &resp)
	return resp, err
}

func (c *Client) GetForDay(ctx context.Context, workerIDs []string, day string) (types.AttendanceList, error) {
	var list types.AttendanceList
	err := c.call(ctx, "GetForDay", types.AttendanceQuery{WorkerIDs: workerIDs, Day: day}, &list)
	return list, err
}

func (c *Client) GetForRange(ctx context.Context, workerIDs []string, start, end string) (types.AttendanceList, error) {
	var list types.AttendanceList
	err := c.call(ctx, "GetForRange", types.AttendanceQuery{WorkerIDs: workerIDs, Start: start, End: end}, &list)
	return list, err
}

func (c *Client) call(ctx context.Context, method string, in, out any) error {
	req, err := types.ToStruct(in)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), req, resp); err != nil {
		return err
	}
	return types.FromStruct(resp, out)
}
