package artifact

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
)

const (
	manifestFile   = "manifest.json"
	classifierFile = "classifier.bin"
	encodersFile   = "encoders.json"
	currentFile    = "CURRENT"
)

// FileStore keeps bundles under <dir>/bundles/<version>/ and publishes them
// by renaming a new <dir>/CURRENT pointer into place.
type FileStore struct {
	dir   string
	codec Codec
	log   *logger.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir
func NewFileStore(dir string, codec Codec) *FileStore {
	return &FileStore{
		dir:   dir,
		codec: codec,
		log:   logger.Get().With("component", "artifact_file_store"),
	}
}

// Load reads the bundle CURRENT points at
func (s *FileStore) Load(ctx context.Context) (*Bundle, error) {
	pointer, err := os.ReadFile(filepath.Join(s.dir, currentFile))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "read bundle pointer")
	}
	version := strings.TrimSpace(string(pointer))
	if version == "" || strings.ContainsAny(version, `/\`) {
		return nil, errors.Newf("invalid bundle pointer %q", version)
	}

	dir := filepath.Join(s.dir, "bundles", version)
	var in blobs
	for name, dst := range map[string]*[]byte{
		manifestFile:   &in.manifest,
		classifierFile: &in.classifier,
		encodersFile:   &in.encoders,
	} {
		if *dst, err = os.ReadFile(filepath.Join(dir, name)); err != nil {
			return nil, errors.Wrapf(err, "read %s of bundle %s", name, version)
		}
	}

	b, err := s.codec.decode(in)
	if err != nil {
		return nil, errors.Wrapf(err, "decode bundle %s", version)
	}
	s.log.Infow("Loaded model bundle", "version", version, "format", b.Manifest.ClassifierFormat)
	return b, nil
}

// Save writes the bundle into a staging directory, moves it into place and
// then swaps CURRENT. A failure at any step leaves the previous bundle live.
func (s *FileStore) Save(ctx context.Context, b *Bundle) error {
	out, err := s.codec.encode(b)
	if err != nil {
		return err
	}

	root := filepath.Join(s.dir, "bundles")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return errors.Wrap(err, "create bundle root")
	}

	staging, err := os.MkdirTemp(root, ".staging-")
	if err != nil {
		return errors.Wrap(err, "create staging dir")
	}
	defer os.RemoveAll(staging)

	for name, data := range map[string][]byte{
		manifestFile:   out.manifest,
		classifierFile: out.classifier,
		encodersFile:   out.encoders,
	} {
		if err := writeFileSync(filepath.Join(staging, name), data); err != nil {
			return errors.Wrapf(err, "write %s", name)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	final := filepath.Join(root, b.Manifest.Version)
	if err := os.Rename(staging, final); err != nil {
		return errors.Wrap(err, "publish bundle dir")
	}

	tmp := filepath.Join(s.dir, currentFile+".tmp")
	if err := writeFileSync(tmp, []byte(b.Manifest.Version+"\n")); err != nil {
		return errors.Wrap(err, "write bundle pointer")
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, currentFile)); err != nil {
		return errors.Wrap(err, "swap bundle pointer")
	}

	s.log.Infow("Saved model bundle", "version", b.Manifest.Version, "dir", final)
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
