package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/draftview"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/logger"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/session"
)

// Request fields.
const (
	FieldViewID = "view_id"
	FieldIndex  = "index"
	FieldName   = "name"
)

// Server drives session views over gRPC. Every call names the view it acts on, so a
// gRPC client shares a session with the browser holding the same id.
type Server struct {
	store *session.Store
}

func NewServer(store *session.Store) *Server {
	return &Server{store: store}
}

// Register attaches the service to a gRPC server.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(&ServiceDesc, s)
}

// GetView returns the view snapshot, mounting the view if needed.
func (s *Server) GetView(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	v, err := s.view(ctx, req)
	if err != nil {
		return nil, err
	}
	return toStruct(v.Snapshot())
}

// GeneratePick starts the drama delay and returns its length. The pick itself lands
// later and is observable through GetView or StreamEvents.
func (s *Server) GeneratePick(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	v, err := s.view(ctx, req)
	if err != nil {
		return nil, err
	}
	delay, err := v.GeneratePick()
	if err != nil {
		return nil, statusFor(err)
	}
	logger.Info("gRPC: Pick started", "view_id", v.ID(), "delay_ms", delay.Milliseconds())
	return structpb.NewStruct(map[string]any{
		FieldViewID: v.ID(),
		"delay_ms":  delay.Milliseconds(),
	})
}

// UpdateTeamName renames the team at index, the same way an inline edit would.
func (s *Server) UpdateTeamName(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	v, err := s.view(ctx, req)
	if err != nil {
		return nil, err
	}
	fields := req.GetFields()
	idx, ok := fields[FieldIndex]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "index is required")
	}
	num, ok := idx.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "index must be a number")
	}
	n := num.NumberValue
	if n != math.Trunc(n) || n < 0 || n > math.MaxInt32 {
		return nil, status.Error(codes.InvalidArgument, "index must be a non-negative integer")
	}
	i := int(n)
	nameValue, ok := fields[FieldName].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}
	name := nameValue.StringValue

	logger.Info("gRPC: Updating team name", "view_id", v.ID(), "index", i, "name", name)
	if err := v.BeginEdit(i); err != nil {
		return nil, statusFor(err)
	}
	if err := v.EditInput(i, name); err != nil {
		return nil, statusFor(err)
	}
	if err := v.CommitEdit(ctx, i); err != nil {
		return nil, statusFor(err)
	}
	return toStruct(v.Snapshot())
}

// ResetDraft opens and confirms the reset dialog in one call.
func (s *Server) ResetDraft(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	v, err := s.view(ctx, req)
	if err != nil {
		return nil, err
	}
	logger.Info("gRPC: Resetting draft", "view_id", v.ID())
	v.RequestReset()
	if err := v.ConfirmReset(ctx); err != nil {
		return nil, statusFor(err)
	}
	return toStruct(v.Snapshot())
}

// StreamEvents streams view changes. An empty view_id streams every local view.
func (s *Server) StreamEvents(req *structpb.Struct, stream grpc.ServerStream) error {
	viewID := req.GetFields()[FieldViewID].GetStringValue()
	logger.Debug("gRPC: New client connected to event stream", "view_id", viewID)

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if viewID != "" && ev.ViewID != viewID {
				continue
			}
			msg, err := toStruct(ev)
			if err != nil {
				return err
			}
			if err := stream.SendMsg(msg); err != nil {
				logger.Error("gRPC: Failed to send event to stream", "error", err)
				return err
			}
		case <-stream.Context().Done():
			logger.Debug("gRPC: Client disconnected from event stream")
			return nil
		}
	}
}

func (s *Server) view(ctx context.Context, req *structpb.Struct) (*draftview.View, error) {
	id := req.GetFields()[FieldViewID].GetStringValue()
	if !session.ValidID(id) {
		return nil, status.Error(codes.InvalidArgument, "view_id must be a session id")
	}
	v, err := s.store.GetOrCreate(ctx, id)
	if err != nil {
		return nil, statusFor(err)
	}
	return v, nil
}

func statusFor(err error) error {
	switch {
	case errors.Is(err, draftview.ErrTeamIndex):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, draftview.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, draftview.ErrDraftComplete),
		errors.Is(err, draftview.ErrPickInFlight),
		errors.Is(err, draftview.ErrResetInFlight),
		errors.Is(err, draftview.ErrResetNotConfirmed),
		errors.Is(err, draftview.ErrNotEditing):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Unavailable, fmt.Sprintf("lottery service: %v", err))
	}
}

// toStruct goes through JSON so the message matches the /api/view document.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
