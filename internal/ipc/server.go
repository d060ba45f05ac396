package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"clipflow/internal/daemon"
	"clipflow/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Clipflow", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket", logging.String("socket", s.path), logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	if err := s.daemon.StartProcessing(); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "processing started"
	s.logger.Info("processing started via IPC")
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.daemon.StopProcessing()
	resp.Stopped = true
	s.logger.Info("processing stopped via IPC")
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.PID = status.PID
	resp.SchedulerRunning = status.Scheduler.Running
	resp.IsProcessing = status.Scheduler.IsProcessing
	resp.CurrentItem = status.Scheduler.CurrentItem
	resp.QueueLength = status.Scheduler.QueueLength
	resp.EditorsAvailable = status.Scheduler.EditorsAvailable
	resp.LastError = status.Scheduler.LastError
	resp.LockPath = status.LockPath
	resp.QueuePath = status.QueuePath
	resp.RegistryPath = status.RegistryPath
	return nil
}

func (s *service) QueueList(_ QueueListRequest, resp *QueueListResponse) error {
	items, err := s.daemon.ListQueue()
	if err != nil {
		return err
	}
	resp.Items = items
	return nil
}

func (s *service) QueueAdd(req QueueAddRequest, resp *QueueAddResponse) error {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return errors.New("queue add requires a url")
	}
	if err := s.daemon.AddQueueItem(url); err != nil {
		return err
	}
	resp.Added = true
	s.logger.Info("queue item added via IPC", logging.String(logging.FieldURL, url))
	return nil
}

func (s *service) QueueRemove(req QueueRemoveRequest, resp *QueueRemoveResponse) error {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return errors.New("queue remove requires a url")
	}
	if err := s.daemon.RemoveQueueItem(url); err != nil {
		return err
	}
	resp.Removed = true
	s.logger.Info("queue item removed via IPC", logging.String(logging.FieldURL, url))
	return nil
}

func (s *service) SweepClaims(_ SweepClaimsRequest, resp *SweepClaimsResponse) error {
	removed, err := s.daemon.SweepClaims()
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.logger.Info("claims swept via IPC", logging.Int("removed", removed))
	return nil
}

func (s *service) RunLogTail(req RunLogTailRequest, resp *RunLogTailResponse) error {
	entries, err := s.daemon.RunLogTail(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Records = make([]RunRecord, 0, len(entries))
	for _, entry := range entries {
		resp.Records = append(resp.Records, RunRecord{
			URL:             entry.URL,
			Title:           entry.Title,
			EditorURL:       entry.EditorURL,
			Outcome:         entry.Outcome,
			ErrorType:       entry.ErrorType,
			DurationSeconds: entry.Duration.Seconds(),
			CreatedAt:       entry.CreatedAt.Format(time.RFC3339),
		})
	}
	return nil
}
