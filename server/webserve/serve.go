package webserve

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/donetkit/contrib-log/glog"
	"github.com/donetkit/contrib-xray/server/systemsignal"
	"github.com/donetkit/contrib-xray/tracer"
	"github.com/felixge/httpsnoop"
	"github.com/shirou/gopsutil/v3/host"
)

// Server runs an HTTP service whose spans go through the tracer, until the process is
// signalled or the context given to Run is done.
type Server struct {
	Tracer          *tracer.Server
	Logger          glog.ILoggerEntry
	ServiceName     string
	Host            string
	Port            int
	handler         http.Handler
	httpServer      *http.Server
	readTimeout     time.Duration
	writerTimeout   time.Duration
	shutdownTimeout time.Duration
	pId             int

	mu   sync.Mutex
	addr net.Addr
}

func New(opts ...Option) *Server {
	var server = &Server{
		ServiceName:     "demo",
		Port:            80,
		pId:             os.Getpid(),
		writerTimeout:   time.Second * 120,
		readTimeout:     time.Second * 120,
		shutdownTimeout: time.Second * 5,
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.Logger == nil {
		server.Logger = glog.New().WithField("WebServe", "WebServe")
	}
	if server.handler == nil {
		server.handler = http.NotFoundHandler()
	}
	return server
}

// Addr returns the address the server listens on, nil before Run.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run serves until a stop signal arrives or ctx is done, then shuts the server down
// gracefully and stops the tracer.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.Host, s.Port))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.httpServer = &http.Server{
		Handler:      s.logRequests(s.handler),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writerTimeout,
	}
	s.mu.Unlock()

	serveErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()
	s.printLog()

	hookCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		// a failing listener stops the server like a signal would
		if err := <-serveErr; err != nil {
			s.Logger.Error("http webserve error ", err.Error())
		}
		cancel()
	}()

	systemsignal.HookSignals(hookCtx, s)
	s.stop()
	return nil
}

// logRequests logs the status, size and duration of every request at debug level.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.Logger.Debugf("%s %s %d %dB %s", r.Method, r.URL.Path, m.Code, m.Written, m.Duration)
	})
}

// StopNotify logs the signal which stops the server.
func (s *Server) StopNotify(sig os.Signal) {
	s.Logger.Info("receive a signal, " + "signal: " + sig.String())
}

func (s *Server) stop() {
	s.Logger.Info("Server is stopping")
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Logger.Error("shutdown http webserve error ", err.Error())
	}
	if s.Tracer != nil {
		if err := s.Tracer.Stop(ctx); err != nil {
			s.Logger.Error("shutdown tracer error ", err.Error())
		}
	}
	s.Logger.Info("Server is stopped.")
}

func (s *Server) printLog() {
	entry := s.Logger
	if info, err := host.Info(); err == nil {
		entry.Debugf("hostName: %s, upTime: %s, os: %s, platform: %s %s, kernelVersion: %s",
			info.Hostname, time.Duration(info.Uptime)*time.Second, info.OS, info.Platform, info.PlatformVersion, info.KernelVersion)
	}
	entry.Infof("%s listening on %s, pid %d", s.ServiceName, s.Addr(), s.pId)
}
