package telemetry

import (
	"context"
	"testing"
)

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown := Setup("test-service", Options{})
	if shutdown == nil {
		t.Fatal("expected a shutdown hook")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown returned error: %v", err)
	}
}
