package setup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mhdraihanr/loyalinn-pms/internal/auth"
	"github.com/mhdraihanr/loyalinn-pms/internal/model"
	"github.com/mhdraihanr/loyalinn-pms/internal/pms"
	"github.com/mhdraihanr/loyalinn-pms/internal/store"
	pmssync "github.com/mhdraihanr/loyalinn-pms/internal/sync"
)

// Store is what the wizard writes. Implemented by [sqlite.Store] and
// [postgres.Store].
type Store interface {
	CreateTenant(ctx context.Context, name string) (*store.Tenant, error)
	AddMember(ctx context.Context, m store.Member) error
	SavePMSConfig(ctx context.Context, c *store.PMSConfig) error
}

// Providers resolves adapters and lists the provider ids the wizard offers.
// Implemented by [registry.Registry].
type Providers interface {
	Resolve(providerID string) pms.Adapter
	Providers() []string
}

// Syncer runs the optional first sync. Implemented by [pmssync.Trigger].
type Syncer interface {
	SyncTenant(ctx context.Context, tenantID, origin string) (pmssync.Result, error)
}

// Result is what the wizard created.
type Result struct {
	TenantID string
	PMSType  string
}

// keyless providers need neither endpoint nor API key.
var keyless = map[string]bool{"custom": true, "mock": true}

// Wizard guides an operator through onboarding one hotel.
type Wizard struct {
	prompt    *Prompter
	store     Store
	providers Providers
	syncer    Syncer
	logger    *slog.Logger
	w         io.Writer
	now       func() time.Time
}

// NewWizard creates a Wizard wired to the given I/O. syncer may be nil, in
// which case no first sync is offered.
func NewWizard(r io.Reader, w io.Writer, st Store, providers Providers, syncer Syncer, logger *slog.Logger) *Wizard {
	return &Wizard{
		prompt:    NewPrompter(r, w),
		store:     st,
		providers: providers,
		syncer:    syncer,
		logger:    logger,
		w:         w,
		now:       time.Now,
	}
}

// Run executes the wizard: property details, PMS settings, an optional
// connection test, saving, and an optional first sync.
func (wiz *Wizard) Run(ctx context.Context) (*Result, error) {
	fmt.Fprintf(wiz.w, "\nWelcome to Loyalinn Setup!\n")
	fmt.Fprintf(wiz.w, "This wizard creates a hotel and connects it to its PMS.\n\n")

	// Step 1: property.
	fmt.Fprintf(wiz.w, "Step 1/4 - Property\n")
	name, err := wiz.prompt.String("Hotel name", "")
	if err != nil {
		return nil, err
	}
	owner, err := wiz.prompt.String("Owner user ID", "")
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(wiz.w, "\n")

	// Step 2: PMS.
	fmt.Fprintf(wiz.w, "Step 2/4 - PMS Connection\n")
	ids := wiz.providers.Providers()
	idx, err := wiz.prompt.Select("PMS provider", ids)
	if err != nil {
		return nil, fmt.Errorf("selecting provider: %w", err)
	}
	cfg := &store.PMSConfig{PMSType: ids[idx], IsActive: true}
	if !keyless[cfg.PMSType] {
		if cfg.Endpoint, err = wiz.prompt.String("PMS base URL", ""); err != nil {
			return nil, err
		}
		key, err := wiz.prompt.Secret("API key")
		if err != nil {
			return nil, err
		}
		cfg.Credentials = map[string]string{"api_key": key}
	}
	fmt.Fprintf(wiz.w, "\n")

	// Step 3: connection test.
	fmt.Fprintf(wiz.w, "Step 3/4 - Connection Test\n")
	if wiz.prompt.Confirm("Test the PMS connection now?", true) {
		fmt.Fprintf(wiz.w, "  Connecting to %s...", cfg.PMSType)
		n, err := CheckConnection(ctx, wiz.providers.Resolve(cfg.PMSType), cfg.Credentials, cfg.Endpoint, wiz.now())
		if err != nil {
			fmt.Fprintf(wiz.w, " failed\n")
			wiz.logger.Warn("PMS connection test failed", "pms_type", cfg.PMSType, "error", err)
			if !wiz.prompt.Confirm("Save the configuration as inactive anyway?", false) {
				return nil, fmt.Errorf("PMS connection test: %w", err)
			}
			cfg.IsActive = false
		} else {
			fmt.Fprintf(wiz.w, " ok (%d reservation(s) in the next days)\n", n)
		}
	}
	fmt.Fprintf(wiz.w, "\n")

	// Step 4: save.
	fmt.Fprintf(wiz.w, "Step 4/4 - Save\n")
	tenant, err := wiz.store.CreateTenant(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("creating tenant: %w", err)
	}
	if err := wiz.store.AddMember(ctx, store.Member{TenantID: tenant.ID, UserID: owner, Role: string(auth.RoleOwner)}); err != nil {
		return nil, fmt.Errorf("adding owner: %w", err)
	}
	cfg.TenantID = tenant.ID
	if err := wiz.store.SavePMSConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("saving PMS configuration: %w", err)
	}
	fmt.Fprintf(wiz.w, "  Tenant %q created: %s\n", tenant.Name, tenant.ID)
	wiz.logger.Info("tenant onboarded", "tenant_id", tenant.ID, "pms_type", cfg.PMSType, "active", cfg.IsActive)

	res := &Result{TenantID: tenant.ID, PMSType: cfg.PMSType}
	if wiz.syncer == nil || !cfg.IsActive {
		return res, nil
	}
	if !wiz.prompt.Confirm("Run the first sync now?", true) {
		fmt.Fprintf(wiz.w, "  Run it later with: loyalinn sync %s\n", tenant.ID)
		return res, nil
	}
	sum, err := wiz.syncer.SyncTenant(ctx, tenant.ID, model.OriginCLI)
	switch {
	case err != nil:
		fmt.Fprintf(wiz.w, "  First sync failed: %v\n", err)
	case !sum.Success:
		fmt.Fprintf(wiz.w, "  First sync failed: %s\n", sum.Error)
	default:
		fmt.Fprintf(wiz.w, "  %s\n", sum.Message)
	}
	return res, nil
}
