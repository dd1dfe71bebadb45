// Package grpcapi exposes the attendance core as the rollcall.v1.Attendance
// gRPC service. Messages are google.protobuf.Struct values with the same
// field names as the JSON API, so no generated code is needed.
package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "rollcall.v1.Attendance"

// AttendanceServer is the server side of rollcall.v1.Attendance.
type AttendanceServer interface {
	SubmitEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetForDay(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetForRange(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryFunc func(AttendanceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var attendanceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AttendanceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitEvent", Handler: unaryHandler("SubmitEvent", AttendanceServer.SubmitEvent)},
		{MethodName: "GetForDay", Handler: unaryHandler("GetForDay", AttendanceServer.GetForDay)},
		{MethodName: "GetForRange", Handler: unaryHandler("GetForRange", AttendanceServer.GetForRange)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rollcall/v1/attendance.proto",
}

// RegisterAttendanceServer registers srv on s.
func RegisterAttendanceServer(s grpc.ServiceRegistrar, srv AttendanceServer) {
	s.RegisterService(&attendanceServiceDesc, srv)
}

func fullMethod(method string) string { return "/" + ServiceName + "/" + method }

func unaryHandler(method string, call unaryFunc) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AttendanceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AttendanceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
