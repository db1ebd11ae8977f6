// Package server provides the HTTP and WebSocket surface of the bridge.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"

	"github.com/dotside-studios/nfc-bridge/buildinfo"
	"github.com/dotside-studios/nfc-bridge/mifare"
	"github.com/dotside-studios/nfc-bridge/protocol"
)

// Config holds the server configuration
type Config struct {
	Device           *mifare.Device
	Source           TagSource // pushes discovery results; may be nil
	Port             int
	APISecret        string // Optional API secret for WebSocket connection
	AllowedCardTypes map[string]bool
}

// Server manages the HTTP and WebSocket server
type Server struct {
	config     Config
	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
	registry   *TagRegistry

	lastStatus protocol.DeviceStatusPayload
	statusMu   sync.RWMutex

	// Client WebSocket management
	clients       map[*websocket.Conn]string // conn -> client ID
	clientsMux    sync.RWMutex
	sessionActive bool       // Whether a WebSocket session is active
	sessionMux    sync.Mutex // Protects sessionActive
	upgrader      websocket.Upgrader

	// Handler registry for message routing
	handlerRegistry *HandlerRegistry

	// mDNS service for auto-discovery
	mdnsServer *zeroconf.Server
}

// New creates a new server instance
func New(config Config) *Server {
	s := &Server{
		config:   config,
		registry: NewTagRegistry(),
		clients:  make(map[*websocket.Conn]string),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		handlerRegistry: NewHandlerRegistry(),
	}

	if config.Device != nil {
		handler := NewBridgeHandler(config.Device, s.registry, config.Source, config.AllowedCardTypes)
		handler.Register(s)

		s.lastStatus = protocol.DeviceStatusPayload{
			Connected: config.Device.IsOpen(),
			Device:    config.Device.Description(),
		}
	}

	return s
}

// Handle implements HandlerServer interface.
func (s *Server) Handle(messageType string, handler HandlerFunc) error {
	return s.handlerRegistry.Handle(messageType, handler)
}

// StartLifecycle implements HandlerServer interface.
func (s *Server) StartLifecycle(start func(ctx context.Context)) {
	s.handlerRegistry.RegisterLifecycle(start)
}

// Registry returns the server's tag registry.
func (s *Server) Registry() *TagRegistry {
	return s.registry
}

// LastStatus returns the most recently broadcast device status.
func (s *Server) LastStatus() protocol.DeviceStatusPayload {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.lastStatus
}

func (s *Server) setLastStatus(status protocol.DeviceStatusPayload) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.lastStatus = status
}

// broadcast sends a message to all connected clients
func (s *Server) broadcast(message *protocol.WebSocketMessage) {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	for client := range s.clients {
		err := client.WriteJSON(message)
		if err != nil {
			log.Printf("WebSocket write error: %v", err)
			client.Close()
			delete(s.clients, client)
		}
	}
}

// BroadcastDeviceStatus sends the device status to all connected WebSocket clients
func (s *Server) BroadcastDeviceStatus(status protocol.DeviceStatusPayload) {
	s.setLastStatus(status)
	s.broadcast(&protocol.WebSocketMessage{
		Type:    protocol.WSTypeDeviceStatus,
		Payload: status,
	})
}

// BroadcastTagList sends the current tag list to all connected WebSocket clients
func (s *Server) BroadcastTagList(tags []protocol.TagInfo) {
	s.broadcast(&protocol.WebSocketMessage{
		Type:    protocol.WSTypeTagList,
		Payload: tags,
	})
}

// enableCORS is a middleware that adds CORS headers to responses
func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", CORSAllowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", CORSAllowMethods)
		w.Header().Set("Access-Control-Allow-Headers", CORSAllowHeaders)

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// recoverServer handles panic recovery and server restart
func (s *Server) recoverServer() {
	if r := recover(); r != nil {
		log.Printf("Server panic recovered: %v", r)
		log.Println("Restarting server in 5 seconds...")
		time.Sleep(5 * time.Second)
		s.Start()
	}
}

// Start starts the HTTP server and begins handling requests. It blocks
// until Stop is called.
func (s *Server) Start() error {
	defer s.recoverServer()

	log.Printf("Starting %s...", buildinfo.DisplayName)

	mux := http.NewServeMux()

	// API v1 routes
	apiV1 := "/api/v1"

	mux.HandleFunc(apiV1+"/health", enableCORS(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleHealthCheck(w, r)
	}))

	// Configure WebSocket endpoint
	mux.HandleFunc("/ws", enableCORS(s.handleWebSocket))

	mux.HandleFunc("/", enableCORS(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(buildinfo.DisplayName + " Server Running"))
	}))

	// Start the HTTP server in a goroutine
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: mux,
	}

	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
			panic(err)
		}
	}()

	// Register mDNS service for auto-discovery
	if err := s.startMDNS(); err != nil {
		log.Printf("Warning: Failed to start mDNS service: %v", err)
		log.Printf("Auto-discovery will not be available, but server will continue normally")
	}

	// Start lifecycle handlers (the bridge handler starts its pump loop)
	s.handlerRegistry.StartLifecycleHandlers(s.ctx)

	// Block until shutdown is requested
	<-s.ctx.Done()
	log.Println("Server context cancelled, initiating shutdown...")

	return nil
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop() {
	// Shutdown mDNS service
	if s.mdnsServer != nil {
		s.mdnsServer.Shutdown()
		s.mdnsServer = nil
		log.Printf("mDNS service stopped")
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		s.httpServer = nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	s.registry.Clear()
}

// startMDNS registers the bridge as an mDNS service so clients can
// discover it on the local network.
func (s *Server) startMDNS() error {
	txtRecords := []string{
		"version=" + buildinfo.Version,
		"protocol=websocket",
		"path=/ws",
	}

	server, err := zeroconf.Register(MDNSServiceName, MDNSServiceType, MDNSDomain, s.config.Port, txtRecords, nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}

	s.mdnsServer = server
	log.Printf("mDNS service registered: %s on port %d", MDNSServiceName, s.config.Port)

	return nil
}

// handleWebSocket upgrades HTTP connections to WebSocket connections and
// manages the client connection lifecycle
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Check if session is already active (first come, first served)
	s.sessionMux.Lock()
	if s.sessionActive {
		s.sessionMux.Unlock()
		log.Printf("WebSocket connection rejected: session already claimed")
		http.Error(w, "Session already claimed by another client", http.StatusConflict)
		return
	}
	s.sessionActive = true
	s.sessionMux.Unlock()

	releaseSession := func() {
		s.sessionMux.Lock()
		s.sessionActive = false
		s.sessionMux.Unlock()
	}

	// Validate optional API secret if configured
	if s.config.APISecret != "" {
		secret := r.URL.Query().Get("secret")
		if secret != s.config.APISecret {
			releaseSession()
			log.Printf("WebSocket connection rejected: invalid API secret")
			http.Error(w, "Unauthorized: Invalid API secret", http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		releaseSession()
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	clientID := uuid.New().String()
	log.Printf("WebSocket connected from %s (client %s)", r.RemoteAddr, clientID[:8])

	defer func() {
		conn.Close()
		releaseSession()
		log.Printf("WebSocket disconnected, session released (client %s)", clientID[:8])
	}()

	s.clientsMux.Lock()
	s.clients[conn] = clientID
	s.clientsMux.Unlock()

	// Send initial device status and the current tag list
	conn.WriteJSON(protocol.WebSocketMessage{
		Type:    protocol.WSTypeDeviceStatus,
		Payload: s.LastStatus(),
	})
	conn.WriteJSON(protocol.WebSocketMessage{
		Type:    protocol.WSTypeTagList,
		Payload: s.registry.Snapshot(),
	})

	// Keep connection alive and handle incoming messages
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			s.clientsMux.Lock()
			delete(s.clients, conn)
			s.clientsMux.Unlock()
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}

		var wsRequest protocol.WebSocketRequest
		if err := json.Unmarshal(message, &wsRequest); err != nil {
			log.Printf("Failed to parse WebSocket message: %v", err)
			s.sendErrorResponse(conn, "", "PARSE_ERROR", "Invalid message format")
			continue
		}

		handler, ok := s.handlerRegistry.Get(wsRequest.Type)
		if !ok {
			log.Printf("Unknown message type: %s", wsRequest.Type)
			s.sendErrorResponse(conn, wsRequest.ID, "UNKNOWN_TYPE", fmt.Sprintf("Unknown message type: %s", wsRequest.Type))
			continue
		}

		if err := handler(r.Context(), conn, wsRequest); err != nil {
			// Error already sent by handler, just log it
			log.Printf("Handler error for message type '%s': %v", wsRequest.Type, err)
		}
	}
}

// sendErrorResponse sends a structured error response to a WebSocket client
func (s *Server) sendErrorResponse(conn *websocket.Conn, requestID string, errorCode string, message string) {
	response := protocol.WebSocketResponse{
		ID:      requestID,
		Type:    protocol.WSTypeError,
		Success: false,
		Error:   message,
		Payload: map[string]any{
			"code": errorCode,
		},
	}

	if err := conn.WriteJSON(response); err != nil {
		log.Printf("Failed to send error response: %v", err)
	}
}

// handleHealthCheck provides a health check endpoint (GET /api/v1/health)
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"version":   buildinfo.Version,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
