package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/offsync/internal/api"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/dmitrijs2005/offsync/internal/server/services"
	"google.golang.org/grpc"
)

type deviceSvc interface {
	Register(ctx context.Context, externalID string, attrs models.DeviceAttrs) (*models.Device, error)
	IssueToken(deviceID string) (string, error)
	Touch(ctx context.Context, id string) (*models.Device, error)
}

type queueSvc interface {
	Enqueue(ctx context.Context, req services.EnqueueRequest) (string, error)
	List(ctx context.Context, deviceID string, filter models.ItemFilter) ([]models.QueueItem, error)
}

type syncSvc interface {
	RunRound(ctx context.Context, req services.RoundRequest) (*services.RoundResult, error)
	ResolveConflict(ctx context.Context, req services.ResolveRequest) (*models.Conflict, error)
	ListConflicts(ctx context.Context, deviceID string, unresolvedOnly bool, limit int) ([]models.Conflict, error)
}

type sessionSvc interface {
	List(ctx context.Context, deviceID string, limit int) ([]models.SyncSession, error)
}

type GRPCServer struct {
	api.UnimplementedSyncServiceServer
	address   string
	devices   deviceSvc
	queue     queueSvc
	sync      syncSvc
	sessions  sessionSvc
	logger    logging.Logger
	jwtSecret []byte
}

func NewgGRPCServer(a string, l logging.Logger, ds *services.DeviceService, qs *services.QueueService,
	ss *services.SyncService, sess *services.SessionService, secretKey string) (*GRPCServer, error) {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		devices:   ds,
		queue:     qs,
		sync:      ss,
		sessions:  sess,
		jwtSecret: []byte(secretKey),
	}, nil
}

// newServer builds the grpc.Server with interceptors and the service registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	api.RegisterSyncServiceServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gPRC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
