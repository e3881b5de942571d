package otel

import (
	"context"
	"testing"
)

func TestSetupNoEndpointReturnsNoop(t *testing.T) {
	t.Setenv("TRACKLET_OTEL_ENDPOINT", "")

	shutdown, err := Setup(context.Background(), "tracker")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected shutdown function")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupDisabledReturnsNoop(t *testing.T) {
	t.Setenv("TRACKLET_OTEL_ENABLED", "false")
	t.Setenv("TRACKLET_OTEL_ENDPOINT", "http://localhost:4318")

	shutdown, err := Setup(context.Background(), "tracker")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
