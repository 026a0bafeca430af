// ABOUTME: WebSocket sink serving the item stream to a single subscriber
// ABOUTME: Sends a JSON hello, then whole items as binary frames (raw or opus)
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/iqsource/internal/discovery"
	"github.com/Resonate-Protocol/iqsource/internal/protocol"
	"github.com/Resonate-Protocol/iqsource/internal/stream"
	"github.com/Resonate-Protocol/iqsource/internal/version"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// DefaultPort is the listen port when none is configured
	DefaultPort = 8928

	// DefaultBatch is the item count pulled per binary frame
	DefaultBatch = 4096

	writeDeadline = 10 * time.Second
)

// ErrBusy is reported to a second subscriber while the stream is taken
var ErrBusy = errors.New("stream already has a subscriber")

// Puller is the consumer side of the item stream
type Puller interface {
	Work(dst []byte) (int, error)
	ItemSize() int
}

// statsSource is implemented by pullers that can report progress
type statsSource interface {
	Stats() stream.Stats
}

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool

	// Batch is the item count per raw frame (default: DefaultBatch)
	Batch int

	// StatsInterval is how often server/stats is sent (0 disables)
	StatsInterval time.Duration
}

// Server streams items from one Puller to at most one websocket subscriber
type Server struct {
	config   Config
	serverID string
	source   Puller

	upgrader websocket.Upgrader

	httpServer *http.Server
	mux        *http.ServeMux

	// subscribed guards the single consumer of source
	subscribed atomic.Bool

	mdnsManager *discovery.Manager

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// New creates a server pulling items from source
func New(config Config, source Puller) *Server {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Name == "" {
		config.Name = version.Product
	}
	if config.Batch <= 0 {
		config.Batch = DefaultBatch
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		source:   source,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Local network tool: accept every origin
				return true
			},
		},
		stopChan: make(chan struct{}),
	}

	s.mux.HandleFunc("/stream", s.handleStream)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	return s
}

// ID returns the server's unique identifier
func (s *Server) ID() string {
	return s.serverID
}

// Handler exposes the HTTP routes, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens and serves until Stop is called or the listener fails
func (s *Server) Start() error {
	log.Printf("Server starting: %s (ID: %s)", s.config.Name, s.serverID)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Text:        []string{"path=/stream", fmt.Sprintf("item_size=%d", s.source.ItemSize())},
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("WebSocket server listening on %s", addr)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.wg.Wait()
	log.Printf("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop asks Start to shut down. Subscribers blocked on the source are
// released once the source itself is closed.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

func (s *Server) stopping() bool {
	select {
	case <-s.stopChan:
		return true
	default:
		return false
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok\n"))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	codec := r.URL.Query().Get("codec")
	if codec == "" {
		codec = protocol.CodecRaw
	}
	if codec != protocol.CodecRaw && codec != protocol.CodecOpus {
		http.Error(w, fmt.Sprintf("unsupported codec %q", codec), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("New WebSocket connection from %s (codec: %s)", r.RemoteAddr, codec)

	s.shutdownMu.RLock()
	shutdown := s.isShutdown
	s.shutdownMu.RUnlock()
	if shutdown {
		log.Printf("Rejecting connection during shutdown")
		s.sendError(conn, "shutdown", "server is shutting down")
		return
	}

	if !s.subscribed.CompareAndSwap(false, true) {
		log.Printf("Rejecting %s: %v", r.RemoteAddr, ErrBusy)
		s.sendError(conn, "busy", ErrBusy.Error())
		return
	}
	defer s.subscribed.Store(false)

	s.wg.Add(1)
	defer s.wg.Done()

	var enc *frameEncoder
	if codec == protocol.CodecOpus {
		if s.source.ItemSize() != ItemSizeIQ {
			s.sendError(conn, "unsupported_codec",
				fmt.Sprintf("opus needs %d-byte I/Q items, stream has %d", ItemSizeIQ, s.source.ItemSize()))
			return
		}
		enc, err = newFrameEncoder()
		if err != nil {
			log.Printf("Error creating opus encoder: %v", err)
			s.sendError(conn, "encoder", err.Error())
			return
		}
	}

	hello := protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  protocol.Version,
		DeviceInfo: &protocol.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
		ItemSize: s.source.ItemSize(),
		Codec:    codec,
	}
	if enc != nil {
		hello.SampleRate = OpusSampleRate
		hello.Channels = OpusChannels
	}
	if err := s.writeJSON(conn, protocol.TypeServerHello, hello); err != nil {
		log.Printf("Error sending server hello: %v", err)
		return
	}

	// The subscriber only sends close frames; reading keeps control frames flowing
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}
				return
			}
		}
	}()

	err = s.pump(conn, enc, gone)
	if err != nil {
		log.Printf("Stream to %s ended: %v", r.RemoteAddr, err)
	}
	log.Printf("Subscriber disconnected: %s", r.RemoteAddr)
}

// pump pulls items and writes them until the subscriber leaves, the server
// stops or the source fails
func (s *Server) pump(conn *websocket.Conn, enc *frameEncoder, gone <-chan struct{}) error {
	itemSize := s.source.ItemSize()
	buf := make([]byte, s.config.Batch*itemSize)

	var statsC <-chan time.Time
	if s.config.StatsInterval > 0 {
		if _, ok := s.source.(statsSource); ok {
			ticker := time.NewTicker(s.config.StatsInterval)
			defer ticker.Stop()
			statsC = ticker.C
		}
	}

	for {
		select {
		case <-gone:
			return nil
		case <-s.stopChan:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"),
				time.Now().Add(time.Second))
			return nil
		case <-statsC:
			st := s.source.(statsSource).Stats()
			if err := s.writeJSON(conn, protocol.TypeServerStats, protocol.ServerStats{
				Items:     st.Items,
				Rotations: st.Rotations,
				Rewinds:   st.Rewinds,
				Pending:   st.Pending,
				Current:   st.Current,
			}); err != nil {
				return err
			}
		default:
		}

		n, err := s.source.Work(buf)
		if err != nil {
			if !s.stopping() {
				s.sendError(conn, "source", err.Error())
			}
			return err
		}
		data := buf[:n*itemSize]

		if enc == nil {
			if err := s.writeBinary(conn, data); err != nil {
				return err
			}
			continue
		}

		packets, err := enc.Write(data)
		if err != nil {
			return err
		}
		for _, p := range packets {
			if err := s.writeBinary(conn, p); err != nil {
				return err
			}
		}
	}
}

func (s *Server) writeBinary(conn *websocket.Conn, data []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

func (s *Server) writeJSON(conn *websocket.Conn, msgType string, payload interface{}) error {
	data, err := json.Marshal(protocol.Message{Type: msgType, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) sendError(conn *websocket.Conn, code, message string) {
	if err := s.writeJSON(conn, protocol.TypeServerError, protocol.ServerError{
		Error:   code,
		Message: message,
	}); err != nil {
		log.Printf("Error sending %s error: %v", code, err)
	}
}
