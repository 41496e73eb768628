package workflow

import (
	"context"

	"github.com/sirupsen/logrus"
)

// SupplierStore is the local cache consulted before hitting the registry.
type SupplierStore interface {
	GetName(ctx context.Context, ruc string) (string, bool, error)
	SaveName(ctx context.Context, ruc, legalName string) error
}

// SupplierResolver resolves a RUC to a legal name: local cache first, then
// the taxpayer registry, caching registry hits. A not-found result is
// reported as ("", false, nil) so callers never overwrite a known name
// with an empty one.
type SupplierResolver struct {
	store    SupplierStore
	registry RegistryLookup
	logger   *logrus.Logger
}

func NewSupplierResolver(store SupplierStore, registry RegistryLookup, logger *logrus.Logger) *SupplierResolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SupplierResolver{store: store, registry: registry, logger: logger}
}

func (r *SupplierResolver) ResolveName(ctx context.Context, ruc string) (string, bool, error) {
	if name, found, err := r.store.GetName(ctx, ruc); err == nil && found {
		return name, true, nil
	} else if err != nil {
		r.logger.WithFields(logrus.Fields{
			"funcName": "ResolveName",
			"ruc":      ruc,
		}).Warn("supplier cache lookup failed, falling through to registry: " + err.Error())
	}

	name, found, err := r.registry.LookupName(ctx, ruc)
	if err != nil {
		return "", false, err
	}
	if !found || name == "" {
		return "", false, nil
	}

	if err := r.store.SaveName(ctx, ruc, name); err != nil {
		r.logger.WithFields(logrus.Fields{
			"funcName": "ResolveName",
			"ruc":      ruc,
		}).Warn("failed to cache supplier name: " + err.Error())
	}
	return name, true, nil
}
