// Package server hosts the two process entry points this module ships: the
// gateway itself (Run, in gateway.go) and the schema registry (RunRegistry,
// here) that subgraphs push their SDL to.
//
// Grounded on the teacher's server/server.go, with RunGateway removed: it
// called gateway.NewGateway() with no arguments, which never matched the
// real NewGateway(settings GatewayOption) signature even in the teacher
// snapshot. Run (gateway.go) is this package's one gateway entry point now.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/n9te9/federation-core/registry"
)

type registryServer struct {
	registry        *registry.Registry
	graphqlEndpoint string
}

func (s *registryServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.URL.Path {
	case "/schema/registration":
		switch req.Method {
		case http.MethodPost:
			s.registry.RegisterGateway(w, req)
		case http.MethodGet:
			// A gateway starting up after subgraphs already registered has
			// missed every past fan-out; it pulls the current snapshot
			// instead of waiting on the next registration to arrive.
			s.writeSnapshot(w)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (s *registryServer) writeSnapshot(w http.ResponseWriter) {
	graphs := s.registry.Graphs()
	out := make([]Graph, 0, len(graphs))
	for _, sg := range graphs {
		out = append(out, Graph{Name: sg.Name, Host: sg.Host})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

type Graph struct {
	Name string
	Host string
	SDL  string
}

func RunRegistry(graphs []*Graph) error {
	if len(graphs) == 0 {
		return errors.New("no graphs provided")
	}

	reg := registry.NewRegistry()
	reg.Start()

	s := &registryServer{
		registry:        reg,
		graphqlEndpoint: "/graphql",
	}

	srv := &http.Server{
		Addr:    ":8080",
		Handler: s,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt, os.Kill)
	defer stop()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	return nil
}
