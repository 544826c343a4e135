// Package export writes consolidated warehouse tables out as parquet files.
// Because warehouse schemas are derived at run time, the parquet schema is
// generated per table and rows are fed through the JSON writer instead of a
// struct-tagged prototype.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"gorm.io/gorm"

	"github.com/tigerroll/krishi/pkg/pipeline/config"
	"github.com/tigerroll/krishi/pkg/pipeline/store"
	"github.com/tigerroll/krishi/pkg/pipeline/support/logger"
)

const moduleName = "export"

// Exporter writes every warehouse table to one parquet file per table.
type Exporter struct {
	cfg       config.ExportConfig
	inspector *store.Inspector
}

// NewExporter creates an Exporter for the given export configuration.
func NewExporter(cfg config.ExportConfig) *Exporter {
	return &Exporter{cfg: cfg, inspector: store.NewInspector()}
}

// Export walks the warehouse tables and writes each one to
// <directory>/<table>.parquet. Tables are exported independently; failures
// are collected and returned combined so one bad table does not stop the
// rest.
func (e *Exporter) Export(wh *gorm.DB) error {
	if err := os.MkdirAll(e.cfg.Directory, 0o755); err != nil {
		return fmt.Errorf("%s: failed to create export directory '%s': %w", moduleName, e.cfg.Directory, err)
	}

	descriptors, err := e.inspector.Tables(wh)
	if err != nil {
		return fmt.Errorf("%s: failed to enumerate warehouse tables: %w", moduleName, err)
	}

	var errs *multierror.Error
	for _, desc := range descriptors {
		if err := e.exportTable(wh, desc); err != nil {
			logger.Warnf("%s: table '%s' not exported: %v", moduleName, desc.Name, err)
			errs = multierror.Append(errs, err)
			continue
		}
	}
	return errs.ErrorOrNil()
}

func (e *Exporter) exportTable(wh *gorm.DB, desc store.TableDescriptor) error {
	var rows []map[string]interface{}
	if err := wh.Table(desc.Name).Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to read table '%s': %w", desc.Name, err)
	}

	schema, err := jsonSchema(desc)
	if err != nil {
		return fmt.Errorf("failed to build parquet schema for '%s': %w", desc.Name, err)
	}

	buf := new(bytes.Buffer)
	pw, err := writer.NewJSONWriterFromWriter(schema, buf, 1)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer for '%s': %w", desc.Name, err)
	}
	pw.CompressionType = compressionCodec(e.cfg.Compression)

	for _, row := range rows {
		encoded, err := json.Marshal(sanitize(row))
		if err != nil {
			return fmt.Errorf("failed to encode row of '%s': %w", desc.Name, err)
		}
		if err := pw.Write(string(encoded)); err != nil {
			return fmt.Errorf("failed to write row of '%s': %w", desc.Name, err)
		}
	}

	// WriteStop can panic inside the parquet library on malformed input.
	if err := stopWriter(pw); err != nil {
		return fmt.Errorf("failed to finalize parquet file for '%s': %w", desc.Name, err)
	}

	path := filepath.Join(e.cfg.Directory, desc.Name+".parquet")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to persist '%s': %w", path, err)
	}
	logger.Infof("%s: exported %d rows of '%s' to '%s'", moduleName, len(rows), desc.Name, path)
	return nil
}

func stopWriter(pw *writer.JSONWriter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok {
				err = rerr
				return
			}
			err = fmt.Errorf("parquet writer panic: %v", r)
		}
	}()
	return pw.WriteStop()
}

// jsonSchema renders the parquet-go JSON schema for a runtime-derived table
// structure. Every column is OPTIONAL since source data carries NULLs freely.
func jsonSchema(desc store.TableDescriptor) (string, error) {
	type field struct {
		Tag string `json:"Tag"`
	}
	type schema struct {
		Tag    string  `json:"Tag"`
		Fields []field `json:"Fields"`
	}

	s := schema{Tag: "name=parquet_go_root, repetitiontype=REQUIRED"}
	for _, col := range desc.Columns {
		s.Fields = append(s.Fields, field{Tag: fieldTag(col)})
	}
	encoded, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func fieldTag(col store.ColumnDescriptor) string {
	declared := strings.ToUpper(col.DeclaredType)
	switch {
	case strings.Contains(declared, "INT"):
		return fmt.Sprintf("name=%s, type=INT64, repetitiontype=OPTIONAL", col.Name)
	case strings.Contains(declared, "REAL"),
		strings.Contains(declared, "FLOA"),
		strings.Contains(declared, "DOUB"),
		strings.Contains(declared, "NUMERIC"),
		strings.Contains(declared, "DECIMAL"):
		return fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=OPTIONAL", col.Name)
	default:
		return fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", col.Name)
	}
}

// sanitize prepares a driver row for JSON encoding. Byte slices become
// strings so they are not base64 encoded.
func sanitize(row map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(row))
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			out[k] = string(b)
			continue
		}
		out[k] = v
	}
	return out
}

// compressionCodec maps the configured codec name to a parquet codec,
// defaulting to SNAPPY.
func compressionCodec(name string) parquet.CompressionCodec {
	switch strings.ToUpper(name) {
	case "GZIP":
		return parquet.CompressionCodec_GZIP
	case "NONE", "UNCOMPRESSED":
		return parquet.CompressionCodec_UNCOMPRESSED
	default:
		return parquet.CompressionCodec_SNAPPY
	}
}
