package registry

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/mhdraihanr/loyalinn-pms/internal/pms"
	"github.com/mhdraihanr/loyalinn-pms/internal/pms/mock"
	"github.com/mhdraihanr/loyalinn-pms/internal/pms/qloapps"
)

func TestResolve_KnownProviders(t *testing.T) {
	r := New(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	if _, ok := r.Resolve(ProviderCustom).(*mock.Adapter); !ok {
		t.Errorf("Resolve(%q) is not the mock adapter", ProviderCustom)
	}
	if _, ok := r.Resolve(ProviderMock).(*mock.Adapter); !ok {
		t.Errorf("Resolve(%q) is not the mock adapter", ProviderMock)
	}
	if _, ok := r.Resolve(ProviderQloApps).(*qloapps.Adapter); !ok {
		t.Errorf("Resolve(%q) is not the qloapps adapter", ProviderQloApps)
	}
}

func TestWithQloAppsOptions(t *testing.T) {
	r := New(nil, WithQloAppsOptions(qloapps.WithMaxAttempts(1)))
	a := r.Resolve(ProviderQloApps)
	if err := a.Init(map[string]string{"api_key": "k"}, "https://shop.example/"); err != nil {
		t.Fatalf("Init: %v", err)
	}
}

func TestResolve_FreshInstances(t *testing.T) {
	r := New(nil)
	a, b := r.Resolve(ProviderQloApps), r.Resolve(ProviderQloApps)
	if a == b {
		t.Error("Resolve returned the same instance twice")
	}
}

func TestResolve_UnknownFallsBackWithWarning(t *testing.T) {
	var buf bytes.Buffer
	r := New(slog.New(slog.NewTextHandler(&buf, nil)))

	got := r.Resolve("cloudbeds")
	if _, ok := got.(*mock.Adapter); !ok {
		t.Fatalf("Resolve(cloudbeds) = %T, want *mock.Adapter", got)
	}
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "pms_type=cloudbeds") {
		t.Errorf("log = %q, want a warning naming the pms_type", out)
	}
}

type stubAdapter struct{ pms.Adapter }

func TestWithProvider(t *testing.T) {
	r := New(nil, WithProvider("mews", func(*slog.Logger) pms.Adapter { return &stubAdapter{} }))

	if _, ok := r.Resolve("mews").(*stubAdapter); !ok {
		t.Error("Resolve(mews) did not use the registered factory")
	}
	want := []string{"custom", "mews", "mock", "qloapps"}
	got := r.Providers()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Providers() = %v, want %v", got, want)
	}
}
