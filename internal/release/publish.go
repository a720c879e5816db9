// SPDX-License-Identifier: MIT

package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/asentry/asentry/internal/bundle"
	xglog "github.com/asentry/asentry/internal/log"
	"github.com/asentry/asentry/internal/metrics"
	"github.com/asentry/asentry/internal/telemetry"
	"go.opentelemetry.io/otel/codes"
)

// DefaultAssetName is the asset name template; {tag} is replaced by the tag.
const DefaultAssetName = "asentry-{tag}.zip"

// API is the release host surface used by Publisher.
type API interface {
	ReleaseByTag(ctx context.Context, tag string) (Release, error)
	UploadAsset(ctx context.Context, rel Release, name, contentType string, body io.Reader, size int64) (Asset, error)
	DeleteAsset(ctx context.Context, id int64) error
}

// PublishRequest describes one release upload.
type PublishRequest struct {
	Repository string // for logs and spans only
	Tag        string
	SourceDir  string
	Entries    []string
	AssetName  string // template; defaults to DefaultAssetName
	OutputDir  string // where the archive is written; a temp dir when empty
	Replace    bool   // delete an existing asset of the same name first
}

// PublishResult describes a completed upload.
type PublishResult struct {
	Release Release       `json:"release"`
	Asset   Asset         `json:"asset"`
	Bundle  bundle.Result `json:"bundle"`
}

// Publisher builds the firmware archive and attaches it to a release.
type Publisher struct {
	api API
}

// NewPublisher returns a Publisher backed by api.
func NewPublisher(api API) *Publisher {
	return &Publisher{api: api}
}

// AssetName expands the {tag} placeholder.
func AssetName(template, tag string) string {
	if template == "" {
		template = DefaultAssetName
	}
	return strings.ReplaceAll(template, "{tag}", tag)
}

// Publish resolves the release, builds the archive and uploads it. Any
// failure aborts the run; nothing is retried.
func (p *Publisher) Publish(ctx context.Context, req PublishRequest) (res PublishResult, err error) {
	name := AssetName(req.AssetName, req.Tag)
	ctx, span := telemetry.Tracer("asentry/release").Start(ctx, "release.publish")
	span.SetAttributes(telemetry.ReleaseAttributes(req.Repository, req.Tag, name)...)
	logger := xglog.WithComponentFromContext(ctx, "release")

	defer func() {
		switch {
		case err == nil:
			metrics.RecordReleaseUpload("ok")
		case IsAlreadyExists(err):
			metrics.RecordReleaseUpload("exists")
		default:
			metrics.RecordReleaseUpload("error")
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "publish failed")
			logger.Error().Err(err).
				Str(xglog.FieldEvent, "release.upload_failed").
				Str("tag", req.Tag).
				Str("asset", name).
				Msg("release upload failed")
		}
		span.End()
	}()

	if req.Tag == "" {
		return res, errors.New("release: tag is required")
	}

	rel, err := p.api.ReleaseByTag(ctx, req.Tag)
	if err != nil {
		return res, err
	}
	res.Release = rel

	existing, exists := rel.FindAsset(name)
	if exists && !req.Replace {
		return res, fmt.Errorf("%w: %s on release %s", ErrAssetExists, name, rel.TagName)
	}

	outDir := req.OutputDir
	if outDir == "" {
		tmp, err := os.MkdirTemp("", "asentry-release-")
		if err != nil {
			return res, fmt.Errorf("release: temp dir: %w", err)
		}
		defer func() { _ = os.RemoveAll(tmp) }()
		outDir = tmp
	}

	built, err := bundle.Build(ctx, bundle.Options{
		SourceDir: req.SourceDir,
		Output:    filepath.Join(outDir, name),
		Entries:   req.Entries,
	})
	if err != nil {
		return res, err
	}
	res.Bundle = built

	if exists {
		if err := p.api.DeleteAsset(ctx, existing.ID); err != nil {
			return res, err
		}
		logger.Info().
			Str(xglog.FieldEvent, "release.asset_replaced").
			Int64("asset_id", existing.ID).
			Str("asset", name).
			Msg("deleted existing asset")
	}

	f, err := os.Open(built.Path)
	if err != nil {
		return res, fmt.Errorf("release: open archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	asset, err := p.api.UploadAsset(ctx, rel, name, "application/zip", f, built.Size)
	if err != nil {
		return res, err
	}
	res.Asset = asset

	logger.Info().
		Str(xglog.FieldEvent, "release.upload_ok").
		Str("tag", rel.TagName).
		Str("asset", asset.Name).
		Int64("bytes", built.Size).
		Str("sha256", built.SHA256).
		Msg("firmware attached to release")
	return res, nil
}
