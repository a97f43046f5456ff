package repositoryimpl

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vocautobot/vockanban/internal/voc"
	"github.com/vocautobot/vockanban/pkg/cerr"
	"github.com/vocautobot/vockanban/pkg/storage"
)

const vocsPrefix = "vocs"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id int64) string {
	return fmt.Sprintf("%s/%d.yaml", vocsPrefix, id)
}

func resource(id int64) string {
	return "voc " + strconv.FormatInt(id, 10)
}

func idFromPath(p string) (int64, bool) {
	name := strings.TrimSuffix(p[strings.LastIndex(p, "/")+1:], ".yaml")
	id, err := strconv.ParseInt(name, 10, 64)
	return id, err == nil
}

func (r *YAMLRepository) Create(ctx context.Context, t *voc.Ticket) error {
	if t.ID <= 0 {
		return cerr.NewError(cerr.InvalidArgument, "ticket id must be positive", nil)
	}
	exists, err := r.storage.Exists(ctx, path(t.ID))
	if err != nil {
		return cerr.WrapStorageError(resource(t.ID), err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "voc already exists", nil)
	}
	return r.write(ctx, t)
}

func (r *YAMLRepository) Get(ctx context.Context, id int64) (*voc.Ticket, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageError(resource(id), err)
	}
	var t voc.Ticket
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal voc %d: %w", id, err))
	}
	return &t, nil
}

// List returns tickets ordered by id. Files that fail to decode are skipped.
func (r *YAMLRepository) List(ctx context.Context, filter voc.ListFilter, limit, offset int) ([]*voc.Ticket, int, error) {
	paths, err := r.storage.List(ctx, vocsPrefix)
	if err != nil {
		return nil, 0, cerr.WrapStorageError(vocsPrefix, err)
	}

	type entry struct {
		id   int64
		path string
	}
	entries := make([]entry, 0, len(paths))
	for _, p := range paths {
		if id, ok := idFromPath(p); ok {
			entries = append(entries, entry{id: id, path: p})
		}
	}
	slices.SortFunc(entries, func(a, b entry) int { return cmp.Compare(a.id, b.id) })

	var all []*voc.Ticket
	for _, e := range entries {
		data, err := r.storage.Read(ctx, e.path)
		if err != nil {
			continue
		}
		var t voc.Ticket
		if err := yaml.Unmarshal(data, &t); err != nil {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, t.Status) {
			continue
		}
		all = append(all, &t)
	}

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (r *YAMLRepository) Update(ctx context.Context, t *voc.Ticket) error {
	exists, err := r.storage.Exists(ctx, path(t.ID))
	if err != nil {
		return cerr.WrapStorageError(resource(t.ID), err)
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, resource(t.ID)+" not found", nil)
	}
	return r.write(ctx, t)
}

func (r *YAMLRepository) write(ctx context.Context, t *voc.Ticket) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal voc %d: %w", t.ID, err))
	}
	if err := r.storage.Write(ctx, path(t.ID), data); err != nil {
		return cerr.WrapStorageError(resource(t.ID), err)
	}
	return nil
}
