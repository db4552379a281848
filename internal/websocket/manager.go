// Package websocket keeps track of connected clients and pushes trade
// lifecycle events to them in real time.
package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/swapdeck/swapdeck-api/internal/notifier"
)

// Manager is the central registry of websocket connections.
type Manager struct {
	clients      map[uuid.UUID]*Client
	clientsMutex sync.RWMutex
	userClients  map[uuid.UUID]map[uuid.UUID]bool // userID -> set of clientIDs
	userMutex    sync.RWMutex
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewManager creates a connection manager.
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		clients:     make(map[uuid.UUID]*Client),
		userClients: make(map[uuid.UUID]map[uuid.UUID]bool),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// AddClient registers a new connection.
func (m *Manager) AddClient(client *Client) {
	m.clientsMutex.Lock()
	m.clients[client.ID] = client
	m.clientsMutex.Unlock()

	m.userMutex.Lock()
	if _, exists := m.userClients[client.UserID]; !exists {
		m.userClients[client.UserID] = make(map[uuid.UUID]bool)
	}
	m.userClients[client.UserID][client.ID] = true
	m.userMutex.Unlock()

	logrus.WithFields(logrus.Fields{
		"client_id": client.ID,
		"user_id":   client.UserID,
	}).Debug("websocket client connected")
}

// RemoveClient deregisters a connection.
func (m *Manager) RemoveClient(clientID uuid.UUID) {
	m.clientsMutex.RLock()
	client, exists := m.clients[clientID]
	m.clientsMutex.RUnlock()

	if !exists {
		return
	}

	userID := client.UserID

	m.userMutex.Lock()
	if clients, ok := m.userClients[userID]; ok {
		delete(clients, clientID)
		if len(clients) == 0 {
			delete(m.userClients, userID)
		}
	}
	m.userMutex.Unlock()

	m.clientsMutex.Lock()
	delete(m.clients, clientID)
	m.clientsMutex.Unlock()

	logrus.WithFields(logrus.Fields{
		"client_id": clientID,
		"user_id":   userID,
	}).Debug("websocket client disconnected")
}

// Notify implements notifier.Notifier by pushing the event to every open
// connection of the recipient. A recipient with no open connection is not an
// error; they will see the new trade state on their next fetch.
func (m *Manager) Notify(_ context.Context, event notifier.Event) error {
	m.userMutex.RLock()
	clientIDs, exists := m.userClients[event.RecipientID]
	m.userMutex.RUnlock()

	if !exists || len(clientIDs) == 0 {
		return nil
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}

	for clientID := range clientIDs {
		m.clientsMutex.RLock()
		client, exists := m.clients[clientID]
		m.clientsMutex.RUnlock()

		if !exists {
			continue
		}

		// Non-blocking send: a slow client loses the connection, not the server.
		go func(c *Client) {
			select {
			case c.send <- eventJSON:
			default:
				logrus.WithField("client_id", c.ID).Warn("send channel full, closing connection")
				c.conn.Close()
				m.RemoveClient(c.ID)
			}
		}(client)
	}
	return nil
}

// Shutdown closes every connection and resets the registry.
func (m *Manager) Shutdown() {
	m.cancel()

	m.clientsMutex.Lock()
	for _, client := range m.clients {
		client.conn.Close()
	}
	m.clients = make(map[uuid.UUID]*Client)
	m.clientsMutex.Unlock()

	m.userMutex.Lock()
	m.userClients = make(map[uuid.UUID]map[uuid.UUID]bool)
	m.userMutex.Unlock()
}
