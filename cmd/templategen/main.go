// Command templategen writes the blank Excel report template and can upload it
// to the report bucket.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"project_report_srv/internal/config"
	"project_report_srv/internal/storage"
	"project_report_srv/internal/template"

	"github.com/sirupsen/logrus"
)

// ErrTemplateExists is returned when the upload would replace a template
// already in the container.
var ErrTemplateExists = errors.New("template already exists in storage, use -force to replace it")

type options struct {
	out    string
	upload bool
	force  bool
}

func main() {
	var opts options
	flag.StringVar(&opts.out, "out", "", "output path (defaults to templates.dir/templates.excel)")
	flag.BoolVar(&opts.upload, "upload", false, "upload the template to the storage container")
	flag.BoolVar(&opts.force, "force", false, "replace an existing template in the container")
	flag.Parse()

	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}

	if err := run(context.Background(), cfg, opts, logger); err != nil {
		logger.WithError(err).Fatal("Template generation failed")
	}
}

func run(ctx context.Context, cfg config.Config, opts options, logger *logrus.Logger) error {
	path := opts.out
	if path == "" {
		path = filepath.Join(cfg.Templates.Dir, cfg.Templates.Excel)
	}

	data, err := workbookBytes()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	logger.WithField("path", path).Info("Template written")

	if !opts.upload {
		return nil
	}

	store, err := storage.NewEnvOpener(cfg.Storage.ConnectionStringEnv, cfg.Storage.Container, logger).Open(ctx)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	return upload(ctx, store, cfg.Storage.TemplateKey, data, opts.force, logger)
}

func workbookBytes() ([]byte, error) {
	f, err := template.NewWorkbook()
	if err != nil {
		return nil, fmt.Errorf("build workbook: %w", err)
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func upload(ctx context.Context, store storage.Storage, key string, data []byte, force bool, logger *logrus.Logger) error {
	exists, err := store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check template: %w", err)
	}
	if exists && !force {
		return ErrTemplateExists
	}

	if err := store.Save(ctx, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("upload template: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"key":      key,
		"replaced": exists,
	}).Info("Template uploaded")
	return nil
}
