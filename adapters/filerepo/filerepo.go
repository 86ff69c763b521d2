// Package filerepo stores one file per model in a directory, named after the
// model id and the codec, e.g. "user-1.json". Only IDQuery is interpreted;
// every other query variant fails with repository.ErrUnsupportedQuery.
package filerepo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-model-repository/codec"
	"github.com/goliatone/go-model-repository/repository"
	"go.uber.org/zap"
)

const backendName = "filerepo"

var _ repository.Repository[repository.Model] = (*Repository[repository.Model])(nil)

// ErrInvalidID is returned for ids that cannot be used as a file name.
var ErrInvalidID = errors.New("filerepo: invalid model id")

// Repository persists models as encoded files under a directory.
type Repository[T repository.Model] struct {
	dir    string
	ext    string
	codec  codec.Codec[T]
	logger *zap.Logger
}

// Config configures a file repository.
type Config struct {
	Dir string `mapstructure:"dir"`
	// Codec names the payload codec, see codec.ByName.
	Codec string `mapstructure:"codec"`
}

// New creates dir if needed and returns a repository storing models encoded
// with c. A nil codec means compact JSON.
func New[T repository.Model](dir string, c codec.Codec[T], logger *zap.Logger) (*Repository[T], error) {
	if dir == "" {
		return nil, errors.New("filerepo: directory is required")
	}
	if c == nil {
		c = codec.NewJSON[T]()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, repository.StorageFailure(backendName, "mkdir", err)
	}

	return &Repository[T]{
		dir:    dir,
		ext:    "." + c.Name(),
		codec:  c,
		logger: logger,
	}, nil
}

// NewFromConfig resolves the codec by name and calls New.
func NewFromConfig[T repository.Model](cfg Config, logger *zap.Logger) (*Repository[T], error) {
	c, err := codec.ByName[T](cfg.Codec)
	if err != nil {
		return nil, err
	}
	return New[T](cfg.Dir, c, logger)
}

// Dir returns the directory holding the model files.
func (r *Repository[T]) Dir() string {
	return r.dir
}

// Path returns the file path holding id.
func (r *Repository[T]) Path(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", goerrors.Wrap(ErrInvalidID, goerrors.CategoryBadInput, fmt.Sprintf("filerepo: invalid model id %q", id))
	}
	return filepath.Join(r.dir, id+r.ext), nil
}

func (r *Repository[T]) fail(op, id string, err error) error {
	r.logger.Warn("file repository operation failed",
		zap.String("op", op),
		zap.String("id", id),
		zap.Error(err),
	)
	return repository.StorageFailure(backendName, op, err)
}

// Create writes model to a temporary file and renames it over the previous
// version.
func (r *Repository[T]) Create(_ context.Context, model T) error {
	path, err := r.Path(model.GetID())
	if err != nil {
		return err
	}

	data, err := r.codec.Encode(model)
	if err != nil {
		return r.fail("encode", model.GetID(), err)
	}

	tmp, err := os.CreateTemp(r.dir, "*.tmp")
	if err != nil {
		return r.fail("create", model.GetID(), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return r.fail("write", model.GetID(), err)
	}
	if err := tmp.Close(); err != nil {
		return r.fail("write", model.GetID(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return r.fail("write", model.GetID(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return r.fail("rename", model.GetID(), err)
	}
	return nil
}

// Exists reports whether the file for id exists.
func (r *Repository[T]) Exists(_ context.Context, id string) (bool, error) {
	path, err := r.Path(id)
	if err != nil {
		return false, nil
	}
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, r.fail("stat", id, err)
	}
}

// Find returns the model stored under id.
func (r *Repository[T]) Find(_ context.Context, id string) (T, bool, error) {
	var zero T
	path, err := r.Path(id)
	if err != nil {
		return zero, false, nil
	}
	return r.read(id, path)
}

func (r *Repository[T]) read(id, path string) (T, bool, error) {
	var zero T
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return zero, false, nil
		}
		return zero, false, r.fail("read", id, err)
	}

	model, err := r.codec.Decode(data)
	if err != nil {
		return zero, false, r.fail("decode", id, err)
	}
	return model, true, nil
}

// FindByQuery returns the first model matching query.
func (r *Repository[T]) FindByQuery(ctx context.Context, query repository.Query) (T, bool, error) {
	id, ok := query.(repository.IDQuery)
	if !ok {
		var zero T
		return zero, false, repository.UnsupportedQuery(backendName, query)
	}
	return r.Find(ctx, string(id))
}

// FindMany returns the models stored under ids, up to limit.
func (r *Repository[T]) FindMany(ctx context.Context, ids []string, limit int) ([]T, error) {
	var out []T
	for _, id := range repository.UniqueIDs(ids) {
		if repository.Reached(len(out), limit) {
			break
		}
		model, found, err := r.Find(ctx, id)
		if err != nil {
			return out, err
		}
		if found {
			out = append(out, model)
		}
	}
	return out, nil
}

// FindManyByQuery returns up to limit models matching query.
func (r *Repository[T]) FindManyByQuery(ctx context.Context, query repository.Query, limit int) ([]T, error) {
	id, ok := query.(repository.IDQuery)
	if !ok {
		return nil, repository.UnsupportedQuery(backendName, query)
	}
	return r.FindMany(ctx, []string{string(id)}, limit)
}

// FindAll decodes every model file in the directory, ordered by file name.
func (r *Repository[T]) FindAll(_ context.Context) ([]T, error) {
	ids, err := r.ids()
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		model, found, err := r.read(id, filepath.Join(r.dir, id+r.ext))
		if err != nil {
			return out, err
		}
		if found {
			out = append(out, model)
		}
	}
	return out, nil
}

func (r *Repository[T]) ids() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, r.fail("list", "", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, r.ext) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, r.ext))
	}
	return ids, nil
}

// Delete removes the file for id.
func (r *Repository[T]) Delete(_ context.Context, id string) error {
	path, err := r.Path(id)
	if err != nil {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return r.fail("delete", id, err)
	}
	return nil
}

// DeleteByQuery removes the first model matching query.
func (r *Repository[T]) DeleteByQuery(ctx context.Context, query repository.Query) error {
	id, ok := query.(repository.IDQuery)
	if !ok {
		return repository.UnsupportedQuery(backendName, query)
	}
	return r.Delete(ctx, string(id))
}

// DeleteMany removes every id in ids.
func (r *Repository[T]) DeleteMany(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := r.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// DeleteManyByQuery removes up to limit models matching query.
func (r *Repository[T]) DeleteManyByQuery(ctx context.Context, query repository.Query, limit int) error {
	id, ok := query.(repository.IDQuery)
	if !ok {
		return repository.UnsupportedQuery(backendName, query)
	}
	if repository.Reached(0, limit) {
		return nil
	}
	return r.Delete(ctx, string(id))
}
