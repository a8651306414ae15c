package services

import (
	"context"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/runtime"
)

type IChatService interface {
	PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error)
	JoinRoom(connID domain.ConnectionID, roomID domain.RoomID, sink contract.EventSink)
	LeaveRoom(connID domain.ConnectionID, roomID domain.RoomID)
}

// ChatService is the thin facade the transports talk to; all room and
// worker lifecycle lives in the orchestrator behind it.
type ChatService struct {
	orchestrator *runtime.Orchestrator
}

func NewChatService(o *runtime.Orchestrator) *ChatService {
	return &ChatService{orchestrator: o}
}

func (s *ChatService) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error) {
	return s.orchestrator.PostMessage(ctx, cmd)
}

func (s *ChatService) JoinRoom(connID domain.ConnectionID, roomID domain.RoomID, sink contract.EventSink) {
	s.orchestrator.JoinRoom(connID, roomID, sink)
}

func (s *ChatService) LeaveRoom(connID domain.ConnectionID, roomID domain.RoomID) {
	s.orchestrator.LeaveRoom(connID, roomID)
}
