package infra

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

type stubDrainer struct {
	name  string
	err   error
	order *[]string
}

func (d *stubDrainer) Shutdown(ctx context.Context) error {
	*d.order = append(*d.order, d.name)
	return d.err
}

func TestShutdownDrainsInOrder(t *testing.T) {
	var order []string
	cfg := &Config{Port: "0"}
	server := NewHTTPServer(cfg, http.NewServeMux(),
		&stubDrainer{name: "workers", order: &order},
		&stubDrainer{name: "flusher", order: &order},
	)

	if err := server.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if len(order) != 2 || order[0] != "workers" || order[1] != "flusher" {
		t.Fatalf("drain order = %v, want [workers flusher]", order)
	}
}

func TestShutdownCollectsDrainerErrors(t *testing.T) {
	var order []string
	drainErr := errors.New("pool stuck")
	server := NewHTTPServer(&Config{Port: "0"}, http.NewServeMux(),
		&stubDrainer{name: "workers", err: drainErr, order: &order},
		&stubDrainer{name: "flusher", order: &order},
	)

	err := server.Shutdown(context.Background())
	if !errors.Is(err, drainErr) {
		t.Fatalf("err = %v, want drainer error", err)
	}
	if len(order) != 2 {
		t.Fatalf("a failing drainer must not skip the rest, order = %v", order)
	}
}

func TestShutdownZeroValue(t *testing.T) {
	var server HTTPServer
	if err := server.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
}
