package grpc

import (
	"context"

	"github.com/dmitrijs2005/offsync/internal/api"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/dmitrijs2005/offsync/internal/server/services"
)

func (s *GRPCServer) RegisterDevice(ctx context.Context, req *api.RegisterDeviceRequest) (*api.RegisterDeviceResponse, error) {

	s.logger.Info(ctx, "Registration request", "external_id", req.ExternalID)

	device, err := s.devices.Register(ctx, req.ExternalID, models.DeviceAttrs{
		TenantID:   req.TenantID,
		Name:       req.Name,
		Platform:   req.Platform,
		AppVersion: req.AppVersion,
		Config:     syncConfigFromAPI(req.Config),
	})
	if err != nil {
		s.logger.Error(ctx, "register device", "err", err)
		return nil, toStatus(err)
	}

	token, err := s.devices.IssueToken(device.ID)
	if err != nil {
		s.logger.Error(ctx, "issue token", "err", err)
		return nil, toStatus(err)
	}

	s.logger.Info(ctx, "Registered", "device_id", device.ID)
	return &api.RegisterDeviceResponse{Device: deviceToAPI(device), AccessToken: token}, nil
}

func (s *GRPCServer) EnqueueOperation(ctx context.Context, req *api.EnqueueOperationRequest) (*api.EnqueueOperationResponse, error) {

	deviceID, err := authorizedDevice(ctx, req.DeviceID)
	if err != nil {
		return nil, err
	}

	op := models.Operation(req.Operation)
	payload, err := models.NewPayload(op, req.Fields, bulkRecordsFromAPI(req.Records), req.Reason)
	if err != nil {
		return nil, toStatus(err)
	}

	id, err := s.queue.Enqueue(ctx, services.EnqueueRequest{
		DeviceID:        deviceID,
		Operation:       op,
		TableName:       req.TableName,
		RecordID:        req.RecordID,
		Payload:         payload,
		Priority:        models.Priority(req.Priority),
		ClientWatermark: req.ClientWatermark,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return &api.EnqueueOperationResponse{ItemID: id}, nil
}

func (s *GRPCServer) RunSyncRound(ctx context.Context, req *api.RunSyncRoundRequest) (*api.RunSyncRoundResponse, error) {

	deviceID, err := authorizedDevice(ctx, req.DeviceID)
	if err != nil {
		return nil, err
	}

	initiator := req.InitiatedBy
	if initiator == "" {
		initiator = deviceID
	}

	res, err := s.sync.RunRound(ctx, services.RoundRequest{
		DeviceID:    deviceID,
		BatchSize:   req.BatchSize,
		Type:        models.SessionType(req.SessionType),
		InitiatedBy: initiator,
	})
	if err != nil {
		s.logger.Error(ctx, "sync round", "device_id", deviceID, "err", err)
		return nil, toStatus(err)
	}

	return &api.RunSyncRoundResponse{
		Session:             sessionToAPI(res.Session),
		Items:               queueItemsToAPI(res.Items),
		Counts:              countsToAPI(res.Counts),
		SuccessRate:         res.SuccessRate,
		UnresolvedConflicts: conflictsToAPI(res.UnresolvedConflicts),
	}, nil
}

func (s *GRPCServer) ResolveConflict(ctx context.Context, req *api.ResolveConflictRequest) (*api.ResolveConflictResponse, error) {

	caller, err := authorizedDevice(ctx, "")
	if err != nil {
		return nil, err
	}

	resolvedBy := req.ResolvedBy
	if resolvedBy == "" {
		resolvedBy = caller
	}

	c, err := s.sync.ResolveConflict(ctx, services.ResolveRequest{
		ConflictID:   req.ConflictID,
		Strategy:     models.ResolutionStrategy(req.Strategy),
		ResolvedBy:   resolvedBy,
		Notes:        req.Notes,
		MergedFields: req.MergedFields,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return &api.ResolveConflictResponse{Conflict: conflictToAPI(c)}, nil
}

func (s *GRPCServer) ListConflicts(ctx context.Context, req *api.ListConflictsRequest) (*api.ListConflictsResponse, error) {

	deviceID, err := authorizedDevice(ctx, req.DeviceID)
	if err != nil {
		return nil, err
	}

	list, err := s.sync.ListConflicts(ctx, deviceID, req.UnresolvedOnly, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}

	return &api.ListConflictsResponse{Conflicts: conflictsToAPI(list)}, nil
}

func (s *GRPCServer) ListQueueItems(ctx context.Context, req *api.ListQueueItemsRequest) (*api.ListQueueItemsResponse, error) {

	deviceID, err := authorizedDevice(ctx, req.DeviceID)
	if err != nil {
		return nil, err
	}

	items, err := s.queue.List(ctx, deviceID, models.ItemFilter{Status: models.QueueStatus(req.Status), Limit: req.Limit})
	if err != nil {
		return nil, toStatus(err)
	}

	return &api.ListQueueItemsResponse{Items: queueItemsToAPI(items)}, nil
}

func (s *GRPCServer) ListSessions(ctx context.Context, req *api.ListSessionsRequest) (*api.ListSessionsResponse, error) {

	deviceID, err := authorizedDevice(ctx, req.DeviceID)
	if err != nil {
		return nil, err
	}

	list, err := s.sessions.List(ctx, deviceID, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}

	out := make([]api.Session, 0, len(list))
	for i := range list {
		out = append(out, sessionToAPI(&list[i]))
	}
	return &api.ListSessionsResponse{Sessions: out}, nil
}

// Ping doubles as the device heartbeat when called with a token.
func (s *GRPCServer) Ping(ctx context.Context, req *api.PingRequest) (*api.PingResponse, error) {

	if deviceID, ok := ctx.Value(DeviceIDKey).(string); ok && deviceID != "" {
		if _, err := s.devices.Touch(ctx, deviceID); err != nil {
			return nil, toStatus(err)
		}
	}

	return &api.PingResponse{Status: "OK"}, nil
}
