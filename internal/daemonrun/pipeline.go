package daemonrun

import (
	"context"
	"fmt"
	"log/slog"

	"tracksync/internal/classify"
	"tracksync/internal/config"
	"tracksync/internal/daemon"
	"tracksync/internal/ingest"
	"tracksync/internal/ledger"
	"tracksync/internal/media"
	"tracksync/internal/metrics"
	"tracksync/internal/relocate"
	"tracksync/internal/services/catalog"
	"tracksync/internal/services/fingerprint"
)

// Pipeline bundles the ingest machine with the collaborators wired from
// configuration.
type Pipeline struct {
	Machine *ingest.Machine
	// Catalog is nil when the catalog is disabled.
	Catalog *catalog.Client
}

// BuildPipeline wires classifier, fingerprint loader, catalog, relocator,
// ledger and metrics into an ingest machine. m may be nil.
func BuildPipeline(cfg *config.Config, store *ledger.Store, m *metrics.Metrics, logger *slog.Logger) (*Pipeline, error) {
	if cfg == nil || store == nil {
		return nil, fmt.Errorf("pipeline requires config and ledger")
	}

	var (
		client    *catalog.Client
		registrar ingest.Catalog
		uploader  ingest.Uploader
	)
	if cfg.Catalog.Enabled {
		client = catalog.New(catalog.Options{
			BaseURL:  cfg.Catalog.URL,
			Username: cfg.Catalog.Username,
			Password: cfg.Catalog.Password,
			Timeout:  cfg.CatalogTimeout(),
			Logger:   logger,
		})
		registrar, uploader = client, client
	} else {
		registrar, uploader = catalog.Offline{}, catalog.Offline{}
	}

	initial, maximum := cfg.RelocateBackoff()
	relocOpts := []relocate.Option{relocate.WithLogger(logger)}
	if m != nil {
		relocOpts = append(relocOpts, relocate.WithAttemptHook(m.ObserveRelocationAttempt))
	}
	relocator := relocate.New(relocate.Policy{
		MaxAttempts:    cfg.Relocate.MaxAttempts,
		InitialBackoff: initial,
		MaxBackoff:     maximum,
		Timeout:        cfg.RelocateTimeout(),
	}, relocOpts...)

	metadataTimeout, registerTimeout, uploadTimeout := cfg.StageTimeouts()
	env := ingest.Env{
		LibraryRoot:     cfg.Paths.LibraryDir,
		QuarantineRoot:  cfg.Paths.QuarantineDir,
		Classifier:      classify.New(cfg.Ingest.SupportedExtensions),
		Metadata:        fingerprint.New(),
		Catalog:         registrar,
		Uploader:        uploader,
		Relocator:       relocator,
		Recorder:        store,
		Index:           store,
		Logger:          logger,
		MetadataTimeout: metadataTimeout,
		RegisterTimeout: registerTimeout,
		UploadTimeout:   uploadTimeout,
	}
	if m != nil {
		env.Observer = m
	}
	machine, err := ingest.NewMachine(env)
	if err != nil {
		return nil, fmt.Errorf("build ingest machine: %w", err)
	}
	return &Pipeline{Machine: machine, Catalog: client}, nil
}

// identity returns the catalog as a daemon identity provider, or nil offline.
func (p *Pipeline) identity() daemon.IdentityProvider {
	if p.Catalog == nil {
		return nil
	}
	return p.Catalog
}

// Authenticate fetches the catalog identity the same way daemon startup
// does. It is a no-op offline.
func (p *Pipeline) Authenticate(ctx context.Context) (media.Identity, error) {
	if p.Catalog == nil {
		return media.Identity{}, nil
	}
	return daemon.FetchIdentity(ctx, p.Catalog)
}
