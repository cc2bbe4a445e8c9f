package maven

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apilibrary/apilibrary/pkg/blob"
)

var jarPayload = []byte{'P', 'K', 0x03, 0x04, 0x14, 0x00, 0x00, 0x00, 0x08, 0x00}

func newTestSynthesizer(t *testing.T) (*Synthesizer, *blob.MemoryStore) {
	t.Helper()
	store := blob.NewMemoryStore()
	s := NewSynthesizer(store, "repo")
	s.now = func() time.Time { return time.Date(2018, 4, 2, 15, 4, 5, 0, time.UTC) }
	return s, store
}

func TestPublishFirstVersion(t *testing.T) {
	ctx := context.Background()
	s, store := newTestSynthesizer(t)

	err := s.Publish(ctx, "edu.wpi.cs3733.b18.teamC", "Pathfinder", "1.0.0", jarPayload)
	require.NoError(t, err)

	dir := "repo/edu/wpi/cs3733/b18/teamC/Pathfinder"

	metaXML, err := store.Get(ctx, dir+"/maven-metadata-local.xml")
	require.NoError(t, err)
	meta, err := ParseMetadata(metaXML)
	require.NoError(t, err)
	assert.Equal(t, "edu.wpi.cs3733.b18.teamC", meta.GroupID)
	assert.Equal(t, "Pathfinder", meta.ArtifactID)
	assert.Equal(t, "1.0.0", meta.Versioning.Release)
	assert.Equal(t, "20180402150405", meta.Versioning.LastUpdated)
	assert.Equal(t, []string{"1.0.0"}, meta.Versioning.Versions.Version)

	pom, err := store.Get(ctx, dir+"/1.0.0/Pathfinder-1.0.0.pom")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pom), "<?xml"))
	assert.Contains(t, string(pom), "<modelVersion>4.0.0</modelVersion>")
	assert.Contains(t, string(pom), "<groupId>edu.wpi.cs3733.b18.teamC</groupId>")
	assert.Contains(t, string(pom), "<version>1.0.0</version>")

	jar, err := store.Get(ctx, dir+"/1.0.0/Pathfinder-1.0.0.jar")
	require.NoError(t, err)
	assert.Equal(t, jarPayload, jar)
}

func TestPublishSecondVersionUpdatesMetadata(t *testing.T) {
	ctx := context.Background()
	s, store := newTestSynthesizer(t)

	require.NoError(t, s.Publish(ctx, "edu.wpi.cs3733.b18.teamC", "Pathfinder", "1.0.0", jarPayload))
	require.NoError(t, s.Publish(ctx, "edu.wpi.cs3733.b18.teamC", "Pathfinder", "1.1.0", jarPayload))

	metaXML, err := store.Get(ctx, "repo/edu/wpi/cs3733/b18/teamC/Pathfinder/maven-metadata-local.xml")
	require.NoError(t, err)
	meta, err := ParseMetadata(metaXML)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", meta.Versioning.Release)
	assert.Equal(t, []string{"1.0.0", "1.1.0"}, meta.Versioning.Versions.Version)

	// Both version directories exist.
	_, err = store.Get(ctx, "repo/edu/wpi/cs3733/b18/teamC/Pathfinder/1.0.0/Pathfinder-1.0.0.jar")
	assert.NoError(t, err)
	_, err = store.Get(ctx, "repo/edu/wpi/cs3733/b18/teamC/Pathfinder/1.1.0/Pathfinder-1.1.0.jar")
	assert.NoError(t, err)
}

// failingStore aborts metadata writes to verify no binary appears that the
// index doesn't list.
type failingStore struct {
	*blob.MemoryStore
}

func (f *failingStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if strings.HasSuffix(key, "maven-metadata-local.xml") {
		return assert.AnError
	}
	return f.MemoryStore.Put(ctx, key, data, contentType)
}

func TestPublishAbortsWhenMetadataWriteFails(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryStore: blob.NewMemoryStore()}
	s := NewSynthesizer(store, "repo")

	err := s.Publish(ctx, "edu.wpi.cs3733.b18.teamC", "Pathfinder", "1.0.0", jarPayload)
	require.Error(t, err)

	objects, lerr := store.List(ctx, "repo/")
	require.NoError(t, lerr)
	assert.Empty(t, objects, "no pom or jar may exist without metadata")
}

func TestPublishConcurrentSameArtifact(t *testing.T) {
	ctx := context.Background()
	s, store := newTestSynthesizer(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			version := fmt.Sprintf("1.%d.0", i)
			assert.NoError(t, s.Publish(ctx, "edu.wpi.cs3733.d18.teamA", "Scheduler", version, jarPayload))
		}(i)
	}
	wg.Wait()

	metaXML, err := store.Get(ctx, "repo/edu/wpi/cs3733/d18/teamA/Scheduler/maven-metadata-local.xml")
	require.NoError(t, err)
	meta, err := ParseMetadata(metaXML)
	require.NoError(t, err)
	// Per-key serialization means no publish may be lost.
	assert.Len(t, meta.Versioning.Versions.Version, 8)
}

func TestMetadataRoundTrip(t *testing.T) {
	meta := NewMetadata("g.h", "A", "1.0.0", time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC))
	meta.AddVersion("1.1.0", time.Date(2020, 2, 2, 3, 4, 5, 0, time.UTC))

	data, err := renderXML(meta)
	require.NoError(t, err)

	parsed, err := ParseMetadata(data)
	require.NoError(t, err)
	assert.Equal(t, meta.Versioning.Versions, parsed.Versioning.Versions)
	assert.Equal(t, "1.1.0", parsed.Versioning.Release)
	assert.Equal(t, "20200202030405", parsed.Versioning.LastUpdated)
}
