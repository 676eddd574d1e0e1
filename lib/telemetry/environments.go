package telemetry

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"datasmoothie-client/lib/configutil"
)

var setupTestEnvironments sync.Map

// SetupForTesting sets up logging and telemetry for a test binary, at most
// once per service name.
func SetupForTesting(t testing.TB, serviceName string) func() {
	if _, loaded := setupTestEnvironments.LoadOrStore(serviceName, struct{}{}); loaded {
		return func() {}
	}

	InitSlog(true)
	tel, err := SetupFromEnv(context.Background(), serviceName)
	if err != nil {
		t.Fatal(err)
	}
	return func() {
		err := tel.Shutdown(context.Background())
		if err != nil {
			t.Log("telemetry shutdown:", err)
		}
	}
}

// SetupFromEnv searches up the filesystem from the cwd for telemetry.json5
// and uses it to set up exporters. If there is no such file, telemetry stays
// disabled and the otel no-op providers remain in place.
func SetupFromEnv(ctx context.Context, serviceName string) (Telemetry, error) {
	config, err := configutil.ReadRecursively[Config]("telemetry.json5")
	if os.IsNotExist(err) {
		slog.Debug("no telemetry.json5 found, telemetry export disabled", "service", serviceName)
		return Telemetry{}, nil
	}
	if err != nil {
		return Telemetry{}, err
	}
	return Setup(ctx, serviceName, config)
}
