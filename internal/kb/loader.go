package kb

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// LoadDirectory walks the knowledge-base directory and loads every supported
// file. Unsupported files are skipped; a file that fails to parse is logged
// and skipped rather than aborting the whole ingestion run.
func LoadDirectory(dir string, logger *zap.Logger) ([]Document, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("knowledge base directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("knowledge base path %q is not a directory", dir)
	}

	var docs []Document
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		doc, err := LoadFile(path)
		if err != nil {
			if err == errUnsupported {
				logger.Debug("skipping unsupported file", zap.String("path", path))
				return nil
			}
			logger.Warn("failed to load file", zap.String("path", path), zap.Error(err))
			return nil
		}

		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking knowledge base: %w", err)
	}

	logger.Info("loaded raw documents", zap.Int("count", len(docs)), zap.String("dir", dir))
	return docs, nil
}

var errUnsupported = fmt.Errorf("unsupported file type")

// LoadFile loads a single document. Supported extensions: .txt, .md, .pdf.
func LoadFile(path string) (Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return loadText(path)
	case ".pdf":
		return loadPDF(path)
	default:
		return Document{}, errUnsupported
	}
}

func loadText(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	return Document{Source: path, Content: string(data)}, nil
}

func loadPDF(path string) (Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	r, err := reader.GetPlainText()
	if err != nil {
		return Document{}, fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return Document{}, fmt.Errorf("reading pdf text: %w", err)
	}

	return Document{
		Source:  path,
		Content: buf.String(),
		Metadata: map[string]string{
			"pages": strconv.Itoa(reader.NumPage()),
		},
	}, nil
}
