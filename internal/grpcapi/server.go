package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/service"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/store"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/types"
)

type Dependencies struct {
	Logger     *slog.Logger
	Addr       string
	Attendance *service.AttendanceService
}

type Server struct {
	grpcServer *grpc.Server
	addr       string
	logger     *slog.Logger
	attendance *service.AttendanceService
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	s := &Server{
		addr:       d.Addr,
		logger:     d.Logger,
		attendance: d.Attendance,
	}
	s.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(d.Logger)))
	RegisterAttendanceServer(s.grpcServer, s)
	return s
}

func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", s.addr, err)
	}
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// Shutdown drains in-flight calls, falling back to a hard stop when ctx
// expires first.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.grpcServer.Stop()
		return ctx.Err()
	}
}

func (s *Server) SubmitEvent(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req types.EventRequest
	if err := types.FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	resp, err := s.attendance.Submit(ctx, req)
	if err != nil {
		return nil, s.toStatus("SubmitEvent", err)
	}
	return reply(resp)
}

func (s *Server) GetForDay(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var q types.AttendanceQuery
	if err := types.FromStruct(in, &q); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	list, err := s.attendance.GetForDay(ctx, q.WorkerIDs, q.Day)
	if err != nil {
		return nil, s.toStatus("GetForDay", err)
	}
	return reply(list)
}

func (s *Server) GetForRange(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var q types.AttendanceQuery
	if err := types.FromStruct(in, &q); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	list, err := s.attendance.GetForRange(ctx, q.WorkerIDs, q.Start, q.End)
	if err != nil {
		return nil, s.toStatus("GetForRange", err)
	}
	return reply(list)
}

func reply(v any) (*structpb.Struct, error) {
	out, err := types.ToStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func (s *Server) toStatus(method string, err error) error {
	code := codeOf(err)
	if code == codes.Internal {
		s.logger.Error("grpc call failed", "method", method, "err", err)
		return status.Error(code, "unexpected server error")
	}
	return status.Error(code, err.Error())
}

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, service.ErrInvalidWorkerID),
		errors.Is(err, service.ErrInvalidAction),
		errors.Is(err, service.ErrInvalidDay),
		errors.Is(err, service.ErrInvalidTimestamp),
		errors.Is(err, service.ErrInvalidRange):
		return codes.InvalidArgument
	case errors.Is(err, service.ErrUnknownWorker),
		errors.Is(err, service.ErrUnknownSite),
		errors.Is(err, store.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, store.ErrConflict):
		return codes.Aborted
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now().UTC()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"dur", time.Since(start),
		)
		return resp, err
	}
}
