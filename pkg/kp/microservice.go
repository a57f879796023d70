package kp

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type Middleware func(http.Handler) http.Handler

// Microservice is a thin wrapper over http.ServeMux: method-prefixed route
// registration, a middleware chain applied outermost-first, and graceful
// shutdown on SIGINT/SIGTERM.
type Microservice struct {
	addr        string
	mux         *http.ServeMux
	middlewares []Middleware
}

type IMicroservice interface {
	Start()
	GET(path string, handler http.HandlerFunc)
	POST(path string, handler http.HandlerFunc)
	PUT(path string, handler http.HandlerFunc)
	DELETE(path string, handler http.HandlerFunc)
	Use(middleware Middleware)
}

func NewMicroservice(port string) IMicroservice {
	return &Microservice{
		addr: ":" + port,
		mux:  http.NewServeMux(),
	}
}

func (m *Microservice) Start() {
	var handler http.Handler = m.mux
	for i := len(m.middlewares) - 1; i >= 0; i-- {
		handler = m.middlewares[i](handler)
	}

	srv := http.Server{
		Addr:         m.addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server listen err: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
		os.Exit(1)
	}
	log.Println("server exited")
}

func (m *Microservice) GET(path string, handler http.HandlerFunc) {
	m.mux.HandleFunc("GET "+path, handler)
}

func (m *Microservice) POST(path string, handler http.HandlerFunc) {
	m.mux.HandleFunc("POST "+path, handler)
}

func (m *Microservice) PUT(path string, handler http.HandlerFunc) {
	m.mux.HandleFunc("PUT "+path, handler)
}

func (m *Microservice) DELETE(path string, handler http.HandlerFunc) {
	m.mux.HandleFunc("DELETE "+path, handler)
}

func (m *Microservice) Use(middleware Middleware) {
	m.middlewares = append(m.middlewares, middleware)
}
