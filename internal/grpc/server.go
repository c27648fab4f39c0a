package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"ledger-service/internal/services"
)

const ServiceName = "ledger.v1.Ledger"

// LedgerServer is the internal RPC surface. Requests and responses are
// google.protobuf.Struct messages carrying the same JSON as the HTTP API.
type LedgerServer interface {
	GetWallet(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Reconcile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type Server struct {
	Log            *zap.Logger
	Wallets        *services.WalletService
	Transactions   *services.TransactionService
	Reconciliation *services.ReconciliationService
}

func unary(method string, call func(LedgerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(LedgerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetWallet", Handler: unary("GetWallet", LedgerServer.GetWallet)},
		{MethodName: "GetTransaction", Handler: unary("GetTransaction", LedgerServer.GetTransaction)},
		{MethodName: "Reconcile", Handler: unary("Reconcile", LedgerServer.Reconcile)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger.proto",
}

// NewGRPCServer registers the ledger and health services.
func NewGRPCServer(s *Server) *grpc.Server {
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(logInterceptor(s.Log)))
	gs.RegisterService(&ServiceDesc, s)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

// StartGRPCServer listens on port and serves in the background.
func StartGRPCServer(port string, s *Server) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	gs := NewGRPCServer(s)
	go func() {
		s.Log.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
		if err := gs.Serve(lis); err != nil {
			s.Log.Error("gRPC server stopped", zap.Error(err))
		}
	}()
	return gs, nil
}

func logInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("rpc",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		)
		return resp, err
	}
}

func toStatus(err error) error {
	kind, msg := services.Classify(err)
	code := codes.Internal
	switch kind {
	case services.KindValidation:
		code = codes.InvalidArgument
	case services.KindNotFound:
		code = codes.NotFound
	case services.KindForbidden:
		code = codes.PermissionDenied
	case services.KindInsufficientFunds, services.KindConsistency:
		code = codes.FailedPrecondition
	case services.KindConflict:
		code = codes.Aborted
	case services.KindGatewayDown:
		code = codes.Unavailable
	}
	return status.Error(code, msg)
}

// toStruct converts v through its JSON form.
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func stringField(req *structpb.Struct, name string) string {
	if v, ok := req.GetFields()[name]; ok {
		switch k := v.GetKind().(type) {
		case *structpb.Value_StringValue:
			return k.StringValue
		case *structpb.Value_NumberValue:
			return fmt.Sprintf("%.0f", k.NumberValue)
		}
	}
	return ""
}

func (s *Server) GetWallet(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID := req.GetFields()["user_id"].GetNumberValue()
	if userID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}
	wallet, err := s.Wallets.ByUser(ctx, uint(userID))
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(wallet)
}

func (s *Server) GetTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	reference := stringField(req, "reference")
	if reference == "" {
		return nil, status.Error(codes.InvalidArgument, "reference is required")
	}
	trx, err := s.Transactions.ByReference(ctx, reference)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(trx)
}

// Reconcile runs a completion signal relayed by another service through the
// same path as gateway callbacks.
func (s *Server) Reconcile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	dto := services.CallbackDTO{
		Status:        stringField(req, "status"),
		TxRef:         stringField(req, "tx_ref"),
		TransactionID: stringField(req, "transaction_id"),
	}
	trx, err := s.Reconciliation.HandleCallback(ctx, dto, "grpc")
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(trx)
}

// LedgerClient calls the ledger service over conn.
type LedgerClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerClient(cc grpc.ClientConnInterface) *LedgerClient {
	return &LedgerClient{cc: cc}
}

func (c *LedgerClient) call(ctx context.Context, method string, in map[string]interface{}) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) GetWallet(ctx context.Context, userID uint) (*structpb.Struct, error) {
	return c.call(ctx, "GetWallet", map[string]interface{}{"user_id": userID})
}

func (c *LedgerClient) GetTransaction(ctx context.Context, reference string) (*structpb.Struct, error) {
	return c.call(ctx, "GetTransaction", map[string]interface{}{"reference": reference})
}

func (c *LedgerClient) Reconcile(ctx context.Context, dto services.CallbackDTO) (*structpb.Struct, error) {
	return c.call(ctx, "Reconcile", map[string]interface{}{
		"status":         dto.Status,
		"tx_ref":         dto.TxRef,
		"transaction_id": dto.TransactionID,
	})
}
