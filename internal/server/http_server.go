package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hectorgimenez/afkbot/internal/bot"
	"github.com/hectorgimenez/afkbot/internal/config"
	"github.com/shirou/gopsutil/v3/process"
)

const rootMessage = "Bot has arrived"

// Supervisor is the part of the bot manager exposed over HTTP.
type Supervisor interface {
	Start() error
	Stop()
	Running() bool
	Status() bot.Stats
}

type HttpServer struct {
	logger   *slog.Logger
	server   *http.Server
	manager  Supervisor
	wsServer *WebSocketServer
	proc     *process.Process
	stop     chan struct{}
	stopOnce sync.Once
}

type ProcessStats struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rssBytes"`
	CPUPercent float64 `json:"cpuPercent"`
}

type StatusData struct {
	Version string       `json:"version"`
	Running bool         `json:"running"`
	Bot     bot.Stats    `json:"bot"`
	Process ProcessStats `json:"process"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func New(logger *slog.Logger, manager Supervisor) *HttpServer {
	s := &HttpServer{
		logger:   logger,
		manager:  manager,
		wsServer: NewWebSocketServer(logger),
		stop:     make(chan struct{}),
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn("Process stats unavailable", slog.Any("error", err))
	} else {
		s.proc = proc
	}

	return s
}

// Handler returns the routes served by Listen.
func (s *HttpServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.getRoot)
	mux.HandleFunc("/status", s.getStatus)
	mux.HandleFunc("/start", s.startBot)
	mux.HandleFunc("/stop", s.stopBot)
	mux.HandleFunc("/ws", s.wsServer.HandleWebSocket)
	return mux
}

func (s *HttpServer) Listen(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", port, err)
	}

	s.logger.Info("Server started", slog.Int("port", port))
	return s.Serve(ln)
}

// Serve handles requests on ln until Stop. It returns nil once stopped, also
// when Stop ran first.
func (s *HttpServer) Serve(ln net.Listener) error {
	go s.wsServer.Run(s.stop)
	go s.BroadcastStatus(time.Second)

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *HttpServer) Stop() error {
	s.stopOnce.Do(func() { close(s.stop) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// BroadcastStatus pushes the status to every websocket client each interval
// until Stop.
func (s *HttpServer) BroadcastStatus(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		jsonData, err := json.Marshal(s.getStatusData())
		if err != nil {
			s.logger.Error("Failed to marshal status data", slog.Any("error", err))
			continue
		}
		s.wsServer.Broadcast(jsonData)
	}
}

func (s *HttpServer) getStatusData() StatusData {
	data := StatusData{
		Version: config.Version,
		Running: s.manager.Running(),
		Bot:     s.manager.Status(),
	}

	if s.proc != nil {
		data.Process.PID = s.proc.Pid
		if mem, err := s.proc.MemoryInfo(); err == nil {
			data.Process.RSSBytes = mem.RSS
		}
		if cpu, err := s.proc.CPUPercent(); err == nil {
			data.Process.CPUPercent = cpu
		}
	}

	return data
}

func (s *HttpServer) getRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(rootMessage))
}

func (s *HttpServer) getStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.getStatusData())
}

func (s *HttpServer) startBot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.manager.Start(); err != nil {
		if errors.Is(err, bot.ErrAlreadyRunning) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		s.logger.Error("Failed to start bot", slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info("Bot started from HTTP")
	s.writeJSON(w, http.StatusAccepted, s.getStatusData())
}

func (s *HttpServer) stopBot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.manager.Stop()
	s.logger.Info("Bot stopped from HTTP")
	s.writeJSON(w, http.StatusOK, s.getStatusData())
}

func (s *HttpServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", slog.Any("error", err))
	}
}
