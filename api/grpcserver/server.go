// Package grpcserver exposes read-only market data over gRPC.
//
// Messages are google.protobuf.Struct so the service needs no generated
// code. The standard health service reports the market data service as
// SERVING only while the trading session is open.
package grpcserver

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"matchbook/domain/orderbook"
	"matchbook/service"
	"matchbook/snapshot"
)

const (
	ServiceName   = "matchbook.MarketData"
	DepthMethod   = "/" + ServiceName + "/Depth"
	StatusMethod  = "/" + ServiceName + "/Status"
	levelsField   = "levels"
	defaultLevels = 0 // all
)

// Book is what the server reads from. *service.BookService satisfies it.
type Book interface {
	Depth() orderbook.Infos
	Status() service.Status
}

type MarketDataServer interface {
	Depth(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Status(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type Server struct {
	book   Book
	scale  int32
	now    func() time.Time
	health *health.Server
}

func NewServer(book Book, scale int32) *Server {
	s := &Server{
		book:   book,
		scale:  scale,
		now:    time.Now,
		health: health.NewServer(),
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Register installs market data and health on gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&ServiceDesc, s)
	healthpb.RegisterHealthServer(gs, s.health)
}

// SyncHealth mirrors the session state into the health service. It has
// the shape of a session ticker callback.
func (s *Server) SyncHealth(st service.Status) {
	if st.Open {
		s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
		return
	}
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
}

// Shutdown marks everything NOT_SERVING.
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

// -------------------- Queries --------------------

// Depth returns aggregated levels, best first. An optional "levels"
// field caps the number of levels per side.
func (s *Server) Depth(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit := defaultLevels
	if v, ok := req.GetFields()[levelsField]; ok {
		n := v.GetNumberValue()
		if n < 0 || n != float64(int(n)) {
			return nil, status.Errorf(codes.InvalidArgument, "levels must be a non-negative integer, got %v", n)
		}
		limit = int(n)
	}

	d := snapshot.Take(s.book.Depth(), s.now())
	out, err := structpb.NewStruct(map[string]any{
		"taken": d.Taken.UTC().Format(time.RFC3339Nano),
		"bids":  s.levels(d.Bids, limit),
		"asks":  s.levels(d.Asks, limit),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode depth: %v", err)
	}
	return out, nil
}

func (s *Server) Status(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	st := s.book.Status()
	s.SyncHealth(st)

	m := map[string]any{
		"open":              st.Open,
		"gfd_expired_today": st.GFDExpiredToday,
		"resting_orders":    st.RestingOrders,
		"bid_levels":        st.BidLevels,
		"ask_levels":        st.AskLevels,
		"last_trade_seq":    st.LastTradeSeq,
	}
	if st.HasBid {
		m["best_bid"] = snapshot.FormatPrice(st.BestBid, s.scale)
	}
	if st.HasAsk {
		m["best_ask"] = snapshot.FormatPrice(st.BestAsk, s.scale)
	}

	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode status: %v", err)
	}
	return out, nil
}

func (s *Server) levels(in []orderbook.LevelInfo, limit int) []any {
	if limit > 0 && len(in) > limit {
		in = in[:limit]
	}
	out := make([]any, 0, len(in))
	for _, l := range in {
		out = append(out, map[string]any{
			"price":    int64(l.Price),
			"quantity": uint64(l.Quantity),
			"display":  snapshot.FormatPrice(l.Price, s.scale),
		})
	}
	return out
}

// -------------------- Service descriptor --------------------

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MarketDataServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Depth", Handler: depthHandler},
		{MethodName: "Status", Handler: statusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "matchbook/marketdata",
}

func depthHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MarketDataServer).Depth(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DepthMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(MarketDataServer).Depth(ctx, req.(*structpb.Struct))
	})
}

func statusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MarketDataServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: StatusMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(MarketDataServer).Status(ctx, req.(*structpb.Struct))
	})
}

// -------------------- Interceptors --------------------

// UnaryLogger logs every unary call with its code and duration.
func UnaryLogger(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		ev := log.Debug()
		if code != codes.OK {
			ev = log.Warn().Err(err)
		}
		ev.Str("method", info.FullMethod).Str("code", code.String()).Dur("took", time.Since(start)).Msg("grpc call")
		return resp, err
	}
}
