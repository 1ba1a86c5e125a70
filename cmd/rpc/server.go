package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alecthomas/units"
	"github.com/canopy-network/votechain/controller"
	"github.com/canopy-network/votechain/lib"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

const (
	colon = ":"

	SoftwareVersion = "0.1.0"
	ContentType     = "Content-Type"
	ApplicationJSON = "application/json; charset=utf-8"

	maxRequestBodyBytes = int64(units.MB)
	shutdownTimeout     = 5 * time.Second
)

// Server represents a votechain RPC server
type Server struct {
	// replica controller
	controller *controller.Controller

	// replica configuration
	config lib.Config

	// running http servers, kept for shutdown
	servers []*http.Server
	mux     sync.Mutex

	logger lib.LoggerI
}

// NewServer constructs and returns a new RPC server
func NewServer(controller *controller.Controller, config lib.Config, logger lib.LoggerI) *Server {
	return &Server{
		controller: controller,
		config:     config,
		logger:     logger,
	}
}

// Start initializes the protocol and admin RPC servers
func (s *Server) Start() {
	go s.startRPC(createRouter(s), s.config.RPCPort)
	go s.startRPC(createAdminRouter(s), s.config.AdminPort)
}

// Stop gracefully shuts down every started server
func (s *Server) Stop() {
	s.mux.Lock()
	defer s.mux.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range s.servers {
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Errorf("RPC server shutdown failed with err: %s", err.Error())
		}
	}
	s.servers = nil
}

// startRPC starts an RPC server with the provided router and port
func (s *Server) startRPC(router *httprouter.Router, port string) {
	srv := &http.Server{
		Addr:    colon + port,
		Handler: s.handler(router),
	}
	s.mux.Lock()
	s.servers = append(s.servers, srv)
	s.mux.Unlock()
	s.logger.Infof("Starting RPC server at 0.0.0.0:%s", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Fatal(err.Error())
	}
}

// handler wraps the router with the CORS policy and the request timeout
func (s *Server) handler(router *httprouter.Router) http.Handler {
	cor := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS", "POST"},
	})
	timeout := time.Duration(s.config.TimeoutS) * time.Second
	return cor.Handler(http.TimeoutHandler(router, timeout, lib.ErrServerTimeout().Error()))
}

// logsHandler writes the replica logfile, newest line first
func logsHandler(s *Server) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		filePath := filepath.Join(s.config.DataDirPath, lib.LogDirectory, lib.LogFileName)
		f, err := os.ReadFile(filePath)
		if err != nil {
			write(w, lib.ErrReadFile(err), http.StatusNotFound)
			return
		}
		split := bytes.Split(bytes.TrimRight(f, "\n"), []byte("\n"))
		var flipped []byte
		for i := len(split) - 1; i >= 0; i-- {
			flipped = append(append(flipped, split[i]...), '\n')
		}
		if _, e := w.Write(flipped); e != nil {
			s.logger.Error(e.Error())
		}
	}
}

// logHandler serves as a middleware that logs incoming RPC calls
type logHandler struct {
	path   string
	h      httprouter.Handle
	logger lib.LoggerI
}

// Handle
func (h logHandler) Handle(resp http.ResponseWriter, req *http.Request, p httprouter.Params) {
	h.logger.Debugf("RPC %s %s", req.Method, h.path)
	h.h(resp, req, p)
}

// readBody reads the size limited request body
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	defer func() { _ = r.Body.Close() }()
	bz, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		write(w, lib.ErrReadBody(err), http.StatusBadRequest)
		return nil, false
	}
	return bz, true
}

// unmarshal reads request body and unmarshals it into ptr
func unmarshal(w http.ResponseWriter, r *http.Request, ptr interface{}) bool {
	bz, ok := readBody(w, r)
	if !ok {
		return false
	}
	if err := lib.UnmarshalJSON(bz, ptr); err != nil {
		write(w, err, http.StatusBadRequest)
		return false
	}
	return true
}

// write marshaled payload to w
func write(w http.ResponseWriter, payload interface{}, code int) {
	w.Header().Set(ContentType, ApplicationJSON)
	w.WriteHeader(code)
	bz, _ := json.MarshalIndent(payload, "", "  ")
	_, _ = w.Write(bz)
}
