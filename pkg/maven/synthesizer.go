package maven

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/apilibrary/apilibrary/pkg/blob"
)

// Synthesizer materializes a Maven-compatible repository layout in a blob
// store. Each published version produces or updates three objects:
//
//	<base>/<group-as-path>/<artifact>/maven-metadata-local.xml
//	<base>/<group-as-path>/<artifact>/<version>/<artifact>-<version>.pom
//	<base>/<group-as-path>/<artifact>/<version>/<artifact>-<version>.jar
//
// The metadata read-modify-write is serialized per (group, artifact) key;
// the POM and jar are independent keys and are written in parallel once
// the metadata write has succeeded.
type Synthesizer struct {
	store   blob.Store
	baseDir string
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSynthesizer creates a synthesizer writing under baseDir in store.
func NewSynthesizer(store blob.Store, baseDir string) *Synthesizer {
	return &Synthesizer{
		store:   store,
		baseDir: baseDir,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *Synthesizer) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// ArtifactDir returns the repository directory for a group/artifact pair.
func (s *Synthesizer) ArtifactDir(group, artifact string) string {
	return path.Join(s.baseDir, strings.ReplaceAll(group, ".", "/"), artifact)
}

// Publish installs one version of an artifact into the repository layout.
// If the metadata update fails, neither the POM nor the jar is written;
// client tooling must never resolve a binary the index doesn't list.
func (s *Synthesizer) Publish(ctx context.Context, group, artifact, version string, payload []byte) error {
	lock := s.keyLock(group + "/" + artifact)
	lock.Lock()
	defer lock.Unlock()

	dir := s.ArtifactDir(group, artifact)
	metaKey := dir + "/maven-metadata-local.xml"

	var meta *Metadata
	existing, err := s.store.Get(ctx, metaKey)
	switch {
	case err == nil:
		meta, err = ParseMetadata(existing)
		if err != nil {
			return err
		}
		meta.AddVersion(version, s.now())
	case errors.Is(err, blob.ErrNotFound):
		meta = NewMetadata(group, artifact, version, s.now())
	default:
		return fmt.Errorf("failed to fetch maven metadata: %w", err)
	}

	metaXML, err := renderXML(meta)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, metaKey, metaXML, "application/xml"); err != nil {
		return fmt.Errorf("failed to write maven metadata: %w", err)
	}

	pomXML, err := renderXML(newPOM(group, artifact, version))
	if err != nil {
		return err
	}

	keyBase := fmt.Sprintf("%s/%s/%s-%s", dir, version, artifact, version)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.store.Put(gctx, keyBase+".pom", pomXML, "application/xml"); err != nil {
			return fmt.Errorf("failed to write pom: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.store.Put(gctx, keyBase+".jar", payload, "application/java-archive"); err != nil {
			return fmt.Errorf("failed to write jar: %w", err)
		}
		return nil
	})
	return g.Wait()
}
