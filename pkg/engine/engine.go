package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/apilibrary/apilibrary/pkg/blob"
	"github.com/apilibrary/apilibrary/pkg/maven"
	"github.com/apilibrary/apilibrary/pkg/observability"
	"github.com/apilibrary/apilibrary/pkg/registry"
	"github.com/apilibrary/apilibrary/pkg/validation"
)

// Config carries engine policy knobs. Zero values are filled in by
// NewEngine with the deployment defaults.
type Config struct {
	// GroupPrefix is prepended when deriving a new artifact's groupId.
	GroupPrefix string

	// SeedVersion is the currentVersion assigned at creation, before any
	// archive upload.
	SeedVersion string

	// ImagePrefix is the key prefix for stored artifact images.
	ImagePrefix string
}

// Engine orchestrates artifact mutations: authorization, field validation,
// binary content sniffing, registry updates and maven repository publishes.
// All failure modes surface as errors or (false, message) pairs; nothing
// panics across the package boundary.
type Engine struct {
	registry registry.Registry
	blobs    blob.Store
	maven    *maven.Synthesizer
	log      *observability.Logger
	metrics  *observability.Metrics
	cfg      Config

	onChange func(context.Context)
	now      func() time.Time
}

// NewEngine wires an engine over its storage and publishing collaborators.
func NewEngine(reg registry.Registry, blobs blob.Store, synth *maven.Synthesizer, log *observability.Logger, metrics *observability.Metrics, cfg Config) *Engine {
	if cfg.GroupPrefix == "" {
		cfg.GroupPrefix = "edu.wpi.cs3733."
	}
	if cfg.SeedVersion == "" {
		cfg.SeedVersion = "1.0.0"
	}
	if cfg.ImagePrefix == "" {
		cfg.ImagePrefix = "img"
	}
	return &Engine{
		registry: reg,
		blobs:    blobs,
		maven:    synth,
		log:      log,
		metrics:  metrics,
		cfg:      cfg,
		now:      time.Now,
	}
}

// OnChange registers a hook invoked after every successful mutation. The
// exporter uses it to refresh the published catalog.
func (e *Engine) OnChange(fn func(context.Context)) {
	e.onChange = fn
}

func (e *Engine) notify(ctx context.Context) {
	if e.onChange != nil {
		e.onChange(ctx)
	}
}

func (e *Engine) observe(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metrics.EngineOperationsTotal.WithLabelValues(operation, status).Inc()
	e.metrics.EngineOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// DeriveArtifactID strips a display name down to its alphanumeric runes,
// which is the maven artifactId convention used throughout the catalog.
func DeriveArtifactID(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DeriveGroupID builds the class-scoped maven groupId from the academic
// coordinates, e.g. prefix "edu.wpi.cs3733.", term B, year 2019, team D
// yields "edu.wpi.cs3733.b19.teamD".
func DeriveGroupID(prefix, term, year, team string) string {
	return prefix + strings.ToLower(term) + year[2:] + ".team" + strings.ToUpper(team)
}

// CreateRequest carries the caller-supplied fields for a new artifact.
type CreateRequest struct {
	Name        string
	Contact     string
	Description string
	Term        string
	Year        string
	Team        string
}

// CreateArtifact validates the static fields, derives the maven
// coordinates, and registers a fresh displayed record seeded with the
// configured initial version. It returns the new artifact id.
func (e *Engine) CreateArtifact(ctx context.Context, actor registry.Actor, req CreateRequest) (id string, err error) {
	defer func(start time.Time) { e.observe("create", start, err) }(e.now())

	if !validation.ValidContact(req.Contact) {
		return "", &validation.FieldError{Field: "contact", Reason: "must contain exactly one '@' with text on both sides"}
	}
	if !validation.ValidTerm(req.Term) {
		return "", &validation.FieldError{Field: "term", Reason: "must be one of A, B, C, D"}
	}
	if !validation.ValidYear(req.Year) {
		return "", &validation.FieldError{Field: "year", Reason: "must be exactly four digits"}
	}
	if !validation.ValidTeam(req.Team) {
		return "", &validation.FieldError{Field: "team", Reason: "must be a single uppercase letter"}
	}
	if !validation.ValidDescription(req.Description) {
		return "", &validation.FieldError{Field: "description", Reason: "contains a javascript: link payload"}
	}

	artifactID := DeriveArtifactID(req.Name)
	if artifactID == "" {
		return "", ErrEmptyName
	}

	description := req.Description
	if description == "" {
		description = "*No description*"
	}

	now := e.now()
	artifact := &registry.Artifact{
		ID:             uuid.NewString(),
		Name:           html.EscapeString(req.Name),
		Contact:        html.EscapeString(req.Contact),
		Description:    html.EscapeString(description),
		GroupID:        DeriveGroupID(e.cfg.GroupPrefix, req.Term, req.Year, req.Team),
		ArtifactID:     artifactID,
		Term:           req.Term,
		Year:           req.Year,
		Team:           req.Team,
		Creator:        actor.Username,
		CurrentVersion: e.cfg.SeedVersion,
		Display:        true,
		CreatedAt:      now,
		LastUpdatedAt:  now,
	}

	if err = e.registry.CreateArtifact(ctx, artifact); err != nil {
		return "", fmt.Errorf("creating artifact: %w", err)
	}

	e.log.WithFields(map[string]interface{}{
		"artifact_id": artifact.ID,
		"group":       artifact.GroupID,
		"artifact":    artifact.ArtifactID,
		"creator":     actor.Username,
	}).Info("artifact created")

	e.notify(ctx)
	return artifact.ID, nil
}

// ApplyUpdate runs the full update sequence against one artifact:
// authorization, whitelist parse, field validation, scalar application,
// image replacement, then the archive+version unit with a maven publish.
// An archive failure rolls back scalar changes but not an already-applied
// image; an invalid image only skips the image field. The boolean result
// pairs with a human-readable message suitable for direct display.
func (e *Engine) ApplyUpdate(ctx context.Context, actor registry.Actor, id string, raw map[string]string) (ok bool, message string) {
	var opErr error
	defer func(start time.Time) { e.observe("update", start, opErr) }(e.now())

	// Ownership comes before validation so a non-owner gets the uniform
	// ownership message, never a validation hint. The registry re-checks
	// atomically on every mutation below.
	if err := e.authorize(ctx, actor, id); err != nil {
		opErr = err
		return false, "Couldn't verify user ownership of API"
	}

	changes, err := validation.ParseChanges(raw)
	if err != nil {
		opErr = err
		return false, err.Error()
	}
	if err := changes.Validate(); err != nil {
		opErr = err
		return false, err.Error()
	}

	// The jar and version fields form a single unit. Checked before any
	// mutation so a half-pair cannot alter scalars.
	if (changes.Jar == nil) != (changes.Version == nil) {
		opErr = ErrVersionPairing
		return false, ErrVersionPairing.Error()
	}

	// The image commits on its own, outside the scalar+archive mutation:
	// a later archive failure must not roll the record back to an image
	// key whose blob no longer exists.
	if changes.Image != nil {
		if err := e.applyImage(ctx, actor, id, *changes.Image); err != nil {
			opErr = err
			if errors.Is(err, registry.ErrOwnership) {
				return false, "Couldn't verify user ownership of API"
			}
			e.log.WithError(err).WithField("artifact_id", id).Error("image update failed")
			return false, "Couldn't update API"
		}
	}

	err = e.registry.Update(ctx, actor, id, func(m registry.Mutator) error {
		e.applyScalars(m, changes)

		if changes.Jar != nil {
			if err := e.applyArchive(ctx, m, changes); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		opErr = err
		switch {
		case errors.Is(err, registry.ErrOwnership):
			return false, "Couldn't verify user ownership of API"
		case errors.Is(err, registry.ErrDuplicateVersion):
			return false, "That version already exists for this API"
		case errors.Is(err, ErrContentType):
			return false, "Received file for API but it wasn't a jar file"
		default:
			e.log.WithError(err).WithField("artifact_id", id).Error("update failed")
			return false, "Couldn't update API"
		}
	}

	e.log.WithField("artifact_id", id).Info("artifact updated")
	e.notify(ctx)
	return true, "Updated API"
}

func (e *Engine) applyScalars(m registry.Mutator, changes *validation.Changes) {
	if changes.Name != nil {
		m.SetName(html.EscapeString(*changes.Name))
	}
	if changes.Contact != nil {
		m.SetContact(html.EscapeString(*changes.Contact))
	}
	if changes.Description != nil {
		m.SetDescription(html.EscapeString(*changes.Description))
	}
	if changes.Term != nil {
		m.SetTerm(*changes.Term)
	}
	if changes.Year != nil {
		m.SetYear(*changes.Year)
	}
	if changes.Team != nil {
		m.SetTeam(*changes.Team)
	}
	m.Touch(e.now())
}

// authorize applies the creator-or-admin rule as a read. An absent record
// and a foreign record yield the same error.
func (e *Engine) authorize(ctx context.Context, actor registry.Actor, id string) error {
	artifact, err := e.registry.GetArtifact(ctx, id)
	if err != nil {
		return registry.ErrOwnership
	}
	if !actor.Admin && artifact.Creator != actor.Username {
		return registry.ErrOwnership
	}
	return nil
}

// applyImage stores a replacement image and commits the new reference. A
// payload that does not decode or does not sniff as an image is skipped
// with a warning and a nil return; the rest of the update proceeds. The
// previous blob is deleted only after the new reference is durable.
func (e *Engine) applyImage(ctx context.Context, actor registry.Actor, id, encoded string) error {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		e.log.WithError(err).WithField("artifact_id", id).Warn("skipping image field, payload is not valid base64")
		return nil
	}
	if !blob.IsImage(data) {
		e.log.WithFields(map[string]interface{}{
			"artifact_id":  id,
			"content_type": blob.Classify(data),
		}).Warn("skipping image field, payload is not an image")
		return nil
	}

	// The key embeds the mime subtype, so a format change produces a new
	// key and the old one has to be cleaned up afterwards.
	key := fmt.Sprintf("%s/%s.%s", e.cfg.ImagePrefix, id, blob.ImageSubtype(data))
	if err := e.blobs.Put(ctx, key, data, blob.Classify(data)); err != nil {
		e.log.WithError(err).WithField("key", key).Warn("skipping image field, store write failed")
		return nil
	}

	var oldRef *string
	err = e.registry.Update(ctx, actor, id, func(m registry.Mutator) error {
		oldRef = m.Artifact().ImageRef
		m.SetImageRef(&key)
		m.Touch(e.now())
		return nil
	})
	if err != nil {
		if derr := e.blobs.Delete(ctx, key); derr != nil {
			e.log.WithError(derr).WithField("key", key).Warn("failed to clean up unreferenced image")
		}
		return err
	}

	if oldRef != nil && *oldRef != key {
		if err := e.blobs.Delete(ctx, *oldRef); err != nil {
			e.log.WithError(err).WithField("key", *oldRef).Warn("failed to delete previous image")
		}
	}
	return nil
}

// applyArchive handles the jar+version unit. Any failure aborts the whole
// update so the registry transaction rolls scalar changes back too.
func (e *Engine) applyArchive(ctx context.Context, m registry.Mutator, changes *validation.Changes) error {
	artifact := m.Artifact()

	data, err := base64.StdEncoding.DecodeString(*changes.Jar)
	if err != nil {
		return fmt.Errorf("%w: jar payload is not valid base64", ErrContentType)
	}
	if !blob.IsArchive(data) {
		return fmt.Errorf("%w: jar field sniffed as %s", ErrContentType, blob.Classify(data))
	}

	number, info, ok := validation.SplitVersion(*changes.Version)
	if !ok {
		return &validation.FieldError{Field: "version", Reason: "must begin with MAJOR.MINOR.PATCH"}
	}

	now := e.now()
	if err := m.AppendVersion(registry.VersionEntry{Number: number, Info: info, RecordedAt: now}); err != nil {
		return err
	}
	m.SetCurrentVersion(number)
	m.SetSizeMB(float64(len(data)) / 1e6)
	m.Touch(now)

	start := e.now()
	err = e.maven.Publish(ctx, artifact.GroupID, artifact.ArtifactID, number, data)
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metrics.PublishesTotal.WithLabelValues(status).Inc()
	e.metrics.PublishDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("publishing %s %s: %w", artifact.ArtifactID, number, err)
	}
	return nil
}

// SoftDelete hides an artifact from the catalog and removes its image
// blob. Version history and published archives are retained so existing
// builds keep resolving.
func (e *Engine) SoftDelete(ctx context.Context, actor registry.Actor, id string) (ok bool, message string) {
	var opErr error
	defer func(start time.Time) { e.observe("delete", start, opErr) }(e.now())

	artifact, err := e.registry.GetArtifact(ctx, id)
	if err != nil {
		opErr = err
		return false, "Couldn't verify user ownership of API"
	}

	if err := e.registry.SoftDeleteArtifact(ctx, actor, id); err != nil {
		opErr = err
		if errors.Is(err, registry.ErrOwnership) {
			return false, "Couldn't verify user ownership of API"
		}
		e.log.WithError(err).WithField("artifact_id", id).Error("delete failed")
		return false, "Couldn't delete API"
	}

	if artifact.ImageRef != nil {
		if err := e.blobs.Delete(ctx, *artifact.ImageRef); err != nil {
			e.log.WithError(err).WithField("key", *artifact.ImageRef).Warn("failed to delete image for removed artifact")
		}
	}

	e.log.WithField("artifact_id", id).Info("artifact deleted")
	e.notify(ctx)
	return true, "Deleted API"
}

// GetArtifact returns the displayed record for id.
func (e *Engine) GetArtifact(ctx context.Context, id string) (*registry.Artifact, error) {
	return e.registry.GetArtifact(ctx, id)
}

// LookupArtifact resolves maven coordinates to a displayed artifact's id.
func (e *Engine) LookupArtifact(ctx context.Context, groupID, artifactID string) (string, error) {
	return e.registry.LookupArtifact(ctx, groupID, artifactID)
}
