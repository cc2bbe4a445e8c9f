package export

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/apilibrary/apilibrary/pkg/blob"
	"github.com/apilibrary/apilibrary/pkg/observability"
	"github.com/apilibrary/apilibrary/pkg/registry"
)

// Record is one displayed artifact as it appears in the published catalog.
// The updated field is unix milliseconds; history lines are rendered as
// "number: info" in semantic-version order.
type Record struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	SizeMB      float64  `json:"size"`
	Contact     string   `json:"contact"`
	Gradle      string   `json:"gradle"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	Updated     int64    `json:"updated"`
	Term        string   `json:"term"`
	Year        string   `json:"year"`
	Team        string   `json:"team"`
	Creator     string   `json:"creator"`
	History     []string `json:"history"`
}

// Class is one academic term+year bucket of the catalog.
type Class struct {
	Term string   `json:"term"`
	Year string   `json:"year"`
	APIs []Record `json:"apis"`
}

// Snapshot is the full catalog document written to the object store. Count
// and size cover displayed artifacts only; totalCount and totalSize cover
// every archive still stored, so they may exceed the displayed figures once
// artifacts have been soft-deleted.
type Snapshot struct {
	Count       int     `json:"count"`
	TotalCount  int     `json:"totalCount"`
	SizeMB      float64 `json:"size"`
	TotalSizeMB float64 `json:"totalSize"`
	Classes     []Class `json:"classes"`
}

// Config carries exporter policy.
type Config struct {
	// BaseDir is the maven repository root used to count stored archives.
	BaseDir string

	// OutputKey is the well-known object key the snapshot is written to.
	OutputKey string

	// BoundaryTerm is the academic-calendar rollover boundary. Terms after
	// it sort into the previous calendar year's slot, an institutional
	// quirk the ordering must preserve. Defaults to "B".
	BoundaryTerm string
}

// Exporter assembles and publishes catalog snapshots from the registry and
// the archive store.
type Exporter struct {
	registry registry.Registry
	store    blob.Store
	log      *observability.Logger
	metrics  *observability.Metrics
	cfg      Config
	now      func() time.Time
}

// NewExporter wires an exporter over the registry and blob store.
func NewExporter(reg registry.Registry, store blob.Store, log *observability.Logger, metrics *observability.Metrics, cfg Config) *Exporter {
	if cfg.OutputKey == "" {
		cfg.OutputKey = "apis.json"
	}
	if cfg.BoundaryTerm == "" {
		cfg.BoundaryTerm = "B"
	}
	return &Exporter{
		registry: reg,
		store:    store,
		log:      log,
		metrics:  metrics,
		cfg:      cfg,
		now:      time.Now,
	}
}

// buildRecord renders one artifact as its catalog record.
func buildRecord(a *registry.Artifact) Record {
	history := make([]registry.VersionEntry, len(a.Versions))
	copy(history, a.Versions)
	registry.SortVersions(history)

	lines := make([]string, 0, len(history))
	for _, v := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", v.Number, v.Info))
	}

	image := ""
	if a.ImageRef != nil {
		image = *a.ImageRef
	}

	return Record{
		ID:          a.ID,
		Name:        a.Name,
		Version:     a.CurrentVersion,
		SizeMB:      a.SizeMB,
		Contact:     a.Contact,
		Gradle:      a.GradleCoordinate(),
		Description: a.Description,
		Image:       image,
		Updated:     a.LastUpdatedAt.UnixMilli(),
		Term:        a.Term,
		Year:        a.Year,
		Team:        a.Team,
		Creator:     a.Creator,
		History:     lines,
	}
}

// sortKey computes the adjusted academic-year ordering key. Terms past the
// boundary belong to a class year that started the previous calendar year,
// so they subtract one before the term letter is appended.
func sortKey(term, year, boundary string) string {
	y, err := strconv.Atoi(year)
	if err != nil {
		return year + term
	}
	if term > boundary {
		y--
	}
	return strconv.Itoa(y) + term
}

// Export assembles a snapshot, writes it to the configured object key, and
// returns it.
func (e *Exporter) Export(ctx context.Context) (snap *Snapshot, err error) {
	start := e.now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		e.metrics.ExportRunsTotal.WithLabelValues(status).Inc()
		e.metrics.ExportDuration.Observe(time.Since(start).Seconds())
	}()

	artifacts, err := e.registry.ListForExport(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}

	snap = &Snapshot{Classes: []Class{}}
	for _, a := range artifacts {
		snap.Count++
		snap.SizeMB += a.SizeMB
	}

	// Every archive ever published still counts toward the totals, whether
	// or not its artifact is still displayed.
	objects, err := e.store.List(ctx, e.cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("listing stored archives: %w", err)
	}
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, ".jar") {
			continue
		}
		snap.TotalCount++
		snap.TotalSizeMB += float64(obj.Size) / 1e6
	}

	sort.SliceStable(artifacts, func(i, j int) bool {
		ki := sortKey(artifacts[i].Term, artifacts[i].Year, e.cfg.BoundaryTerm)
		kj := sortKey(artifacts[j].Term, artifacts[j].Year, e.cfg.BoundaryTerm)
		return ki > kj
	})

	for _, a := range artifacts {
		n := len(snap.Classes)
		if n == 0 || snap.Classes[n-1].Term != a.Term || snap.Classes[n-1].Year != a.Year {
			snap.Classes = append(snap.Classes, Class{Term: a.Term, Year: a.Year, APIs: []Record{}})
			n++
		}
		snap.Classes[n-1].APIs = append(snap.Classes[n-1].APIs, buildRecord(a))
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	if err = e.store.Put(ctx, e.cfg.OutputKey, payload, "application/json"); err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}

	e.metrics.ExportedArtifacts.Set(float64(snap.Count))
	e.metrics.ExportedSizeMB.Set(snap.SizeMB)
	e.log.WithFields(map[string]interface{}{
		"count":       snap.Count,
		"total_count": snap.TotalCount,
		"key":         e.cfg.OutputKey,
	}).Info("catalog exported")
	return snap, nil
}
