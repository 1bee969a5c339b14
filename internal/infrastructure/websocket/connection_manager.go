package websocket

import (
	"encoding/json"
	"sync"

	"auctionhouse/internal/domain"
	"auctionhouse/pkg/logger"
)

// ConnectionManager keeps the live subscriber registry. One connection per
// user per auction; a reconnect replaces the previous entry.
type ConnectionManager struct {
	connections map[string]map[string]domain.WebSocketConnection // auctionID -> userID -> connection
	userConns   map[string][]domain.WebSocketConnection          // userID -> connections
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]map[string]domain.WebSocketConnection),
		userConns:   make(map[string][]domain.WebSocketConnection),
		log:         log,
	}
}

func (cm *ConnectionManager) RegisterConnection(userID, auctionID string, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.connections[auctionID] == nil {
		cm.connections[auctionID] = make(map[string]domain.WebSocketConnection)
	}
	if previous, exists := cm.connections[auctionID][userID]; exists {
		previous.Close()
		cm.removeUserConnLocked(userID, previous)
	}
	cm.connections[auctionID][userID] = conn

	cm.userConns[userID] = append(cm.userConns[userID], conn)

	cm.log.Info("Connection registered", "user_id", userID, "auction_id", auctionID)
	return nil
}

// UnregisterConnection removes conn from the registry. The identity check
// keeps a stale cleanup goroutine from evicting a newer connection that
// replaced it after a reconnect.
func (cm *ConnectionManager) UnregisterConnection(userID, auctionID string, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if auctionConns, exists := cm.connections[auctionID]; exists {
		if current, ok := auctionConns[userID]; ok && current == conn {
			delete(auctionConns, userID)
			if len(auctionConns) == 0 {
				delete(cm.connections, auctionID)
			}
		}
	}

	cm.removeUserConnLocked(userID, conn)

	cm.log.Info("Connection unregistered", "user_id", userID, "auction_id", auctionID)
	return nil
}

func (cm *ConnectionManager) removeUserConnLocked(userID string, conn domain.WebSocketConnection) {
	userConnections, exists := cm.userConns[userID]
	if !exists {
		return
	}

	var newConns []domain.WebSocketConnection
	for _, existingConn := range userConnections {
		if existingConn != conn {
			newConns = append(newConns, existingConn)
		}
	}

	if len(newConns) == 0 {
		delete(cm.userConns, userID)
	} else {
		cm.userConns[userID] = newConns
	}
}

func (cm *ConnectionManager) CloseConnectionsForAuction(auctionID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	auctionConns, exists := cm.connections[auctionID]
	if !exists {
		return nil
	}

	for userID, conn := range auctionConns {
		if err := conn.Close(); err != nil {
			cm.log.Error("Failed to close connection", "user_id", userID,
				"auction_id", auctionID, "error", err)
		}
		cm.removeUserConnLocked(userID, conn)
	}
	delete(cm.connections, auctionID)

	cm.log.Info("Connections closed for auction", "auction_id", auctionID)
	return nil
}

func (cm *ConnectionManager) connectionsForAuction(auctionID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var connections []domain.WebSocketConnection
	for _, conn := range cm.connections[auctionID] {
		connections = append(connections, conn)
	}
	return connections
}

func (cm *ConnectionManager) connectionsForUser(userID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	return append([]domain.WebSocketConnection(nil), cm.userConns[userID]...)
}

func (cm *ConnectionManager) BroadcastToAuction(auctionID string, event *domain.Event) error {
	connections := cm.connectionsForAuction(auctionID)
	if len(connections) == 0 {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	for _, conn := range connections {
		if err := conn.Send(payload); err != nil {
			// A dead peer, evict it and keep going.
			cm.log.Warn("Dropping connection after send failure", "user_id", conn.UserID(),
				"auction_id", auctionID, "error", err)
			conn.Close()
			cm.UnregisterConnection(conn.UserID(), conn.AuctionID(), conn)
		}
	}

	return nil
}

func (cm *ConnectionManager) NotifyUser(userID string, event *domain.Event) error {
	connections := cm.connectionsForUser(userID)
	if len(connections) == 0 {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	for _, conn := range connections {
		if err := conn.Send(payload); err != nil {
			cm.log.Warn("Dropping connection after send failure", "user_id", userID,
				"auction_id", conn.AuctionID(), "error", err)
			conn.Close()
			cm.UnregisterConnection(userID, conn.AuctionID(), conn)
		}
	}

	return nil
}
