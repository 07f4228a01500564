package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPTransport serves MCP over HTTP. Each client holds a session,
// keyed by the X-MCP-Session-ID header, and POSTs JSON-RPC messages
// to /mcp/messages. Tool calls are request/response, so no streaming
// endpoint is exposed.
type HTTPTransport struct {
	addr       string
	server     *mcp.Server
	httpServer *http.Server

	mu        sync.Mutex
	sessions  map[string]*httpSession
	serverCtx context.Context
}

type httpSession struct {
	conn     *httpConnection
	runOnce  sync.Once
	lastUsed time.Time
}

// httpConnection implements mcp.Connection by bridging HTTP request
// bodies to the server's read loop.
type httpConnection struct {
	sessionID string
	reqChan   chan jsonrpc.Message
	respChan  chan jsonrpc.Message
	closed    chan struct{}
	closeOnce sync.Once
}

// NewHTTPTransport creates an HTTP transport serving the given MCP server.
func NewHTTPTransport(addr string, server *mcp.Server) *HTTPTransport {
	if addr == "" {
		addr = "localhost:8085"
	}
	return &HTTPTransport{
		addr:     addr,
		server:   server,
		sessions: make(map[string]*httpSession),
	}
}

// Start runs the HTTP server until the context ends.
func (t *HTTPTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	t.serverCtx = ctx
	t.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp/messages", t.handleMessages)
	mux.HandleFunc("/mcp/health", t.handleHealth)

	t.httpServer = &http.Server{Addr: t.addr, Handler: mux}

	log.Printf("starting MCP HTTP server on %s", t.addr)

	errChan := make(chan error, 1)
	go func() {
		if err := t.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown MCP HTTP server: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("MCP HTTP server: %w", err)
	}
}

// session returns the caller's session, creating one when the id is
// unknown or absent. The bool reports whether the session is new.
func (t *HTTPTransport) session(id string) (*httpSession, string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id != "" {
		if session, ok := t.sessions[id]; ok {
			session.lastUsed = time.Now()
			return session, id, false
		}
	}

	id = uuid.NewString()
	session := &httpSession{
		conn: &httpConnection{
			sessionID: id,
			reqChan:   make(chan jsonrpc.Message, 10),
			respChan:  make(chan jsonrpc.Message, 10),
			closed:    make(chan struct{}),
		},
		lastUsed: time.Now(),
	}
	t.sessions[id] = session
	return session, id, true
}

func (t *HTTPTransport) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, sessionID, created := t.session(r.Header.Get("X-MCP-Session-ID"))
	if created {
		w.Header().Set("X-MCP-Session-ID", sessionID)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("read request: %v", err), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var msg jsonrpc.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		http.Error(w, fmt.Sprintf("invalid JSON-RPC message: %v", err), http.StatusBadRequest)
		return
	}

	t.ensureServerRunning(session)

	select {
	case session.conn.reqChan <- msg:
	case <-r.Context().Done():
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}

	isRequest := true
	switch v := msg.(type) {
	case *jsonrpc.Request:
		// Notifications carry no ID and expect no response.
		isRequest = v.ID != jsonrpc.ID{}
	case *jsonrpc.Response:
		http.Error(w, "unexpected message type: response", http.StatusBadRequest)
		return
	}
	if !isRequest {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	select {
	case resp := <-session.conn.respChan:
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Printf("encode MCP response: %v", err)
		}
	case <-r.Context().Done():
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
	}
}

func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// ensureServerRunning starts the per-session server loop exactly once.
func (t *HTTPTransport) ensureServerRunning(session *httpSession) {
	if t.server == nil {
		return
	}
	session.runOnce.Do(func() {
		t.mu.Lock()
		ctx := t.serverCtx
		t.mu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}
		go func() {
			_ = t.server.Run(ctx, sessionTransport{conn: session.conn})
		}()
	})
}

// sessionTransport hands a pre-existing connection to Server.Run.
type sessionTransport struct {
	conn mcp.Connection
}

func (st sessionTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	return st.conn, nil
}

func (c *httpConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	select {
	case msg := <-c.reqChan:
		return msg, nil
	case <-c.closed:
		return nil, fmt.Errorf("connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *httpConnection) Write(ctx context.Context, msg jsonrpc.Message) error {
	select {
	case c.respChan <- msg:
		return nil
	case <-c.closed:
		return fmt.Errorf("connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *httpConnection) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *httpConnection) SessionID() string {
	return c.sessionID
}
