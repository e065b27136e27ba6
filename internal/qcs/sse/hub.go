package sse

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event SSE事件
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client 已连接的SSE客户端
type Client struct {
	ID     string
	UserID string
	Events chan Event
}

// Hub 管理所有SSE连接
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("sse client registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.Int("total", len(h.clients)))
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Debug("sse client unregistered",
			zap.String("client_id", clientID),
			zap.Int("total", len(h.clients)))
	}
}

// Len 当前连接数
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast 非阻塞发送，缓冲满的客户端跳过
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Events <- event:
		default:
			h.logger.Warn("sse client buffer full, skipping event", zap.String("client_id", client.ID))
		}
	}
}

type issueUpdate struct {
	IssueID     string `json:"issue_id"`
	IssueNumber string `json:"issue_number,omitempty"`
	Action      string `json:"action"`
}

// PublishIssueUpdate 问题变更通知
func (h *Hub) PublishIssueUpdate(issueID, issueNumber, action string) {
	data, _ := json.Marshal(issueUpdate{IssueID: issueID, IssueNumber: issueNumber, Action: action})
	h.Broadcast(Event{
		EventType: "issue_update",
		Data:      string(data),
	})
}
