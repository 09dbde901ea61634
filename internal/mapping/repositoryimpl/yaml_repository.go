package repositoryimpl

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/dhwaniris/permsync/internal/mapping"
	"github.com/dhwaniris/permsync/pkg/cerr"
	"github.com/dhwaniris/permsync/pkg/storage"
)

const mappingsPrefix = "mappings"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", mappingsPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, d *mapping.Document) error {
	exists, err := r.storage.Exists(ctx, path(d.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("mapping", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "mapping already exists", nil)
	}
	data, err := yaml.Marshal(d)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal mapping: %w", err))
	}
	if err := r.storage.Write(ctx, path(d.ID), data); err != nil {
		return cerr.WrapStorageWriteError("mapping", err)
	}
	return nil
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*mapping.Document, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("mapping", err)
	}
	var d mapping.Document
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal mapping: %w", err))
	}
	return &d, nil
}

func (r *YAMLRepository) List(ctx context.Context) ([]*mapping.Document, error) {
	paths, err := r.storage.List(ctx, mappingsPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("mappings", err)
	}
	sort.Strings(paths)

	var all []*mapping.Document
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var d mapping.Document
		if err := yaml.Unmarshal(data, &d); err != nil {
			continue
		}
		all = append(all, &d)
	}
	return all, nil
}

func (r *YAMLRepository) Update(ctx context.Context, d *mapping.Document) error {
	exists, err := r.storage.Exists(ctx, path(d.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("mapping", err)
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, "mapping not found", nil)
	}
	data, err := yaml.Marshal(d)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal mapping: %w", err))
	}
	if err := r.storage.Write(ctx, path(d.ID), data); err != nil {
		return cerr.WrapStorageWriteError("mapping", err)
	}
	return nil
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	if err := r.storage.Delete(ctx, path(id)); err != nil {
		return cerr.WrapStorageDeleteError("mapping", err)
	}
	return nil
}
