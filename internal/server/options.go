package server

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"example.com/sorgate/internal/archive"
	"example.com/sorgate/internal/common"
	"example.com/sorgate/internal/report"
	"example.com/sorgate/internal/rules"
)

// Options configures server creation.
type Options struct {
	StorageDir  string
	ArchivePath string
	RulePack    string
	Lang        string
	Concurrency int
	MaxUploadMB int
}

// Server holds the shared state behind the HTTP handlers: the archive store,
// the acceptance rule pack, and a semaphore bounding concurrent decodes.
type Server struct {
	storageDir  string
	archive     *archive.Store
	audit       *common.AuditLog
	rulePack    rules.RulePack
	lang        report.Language
	maxUpload   int64
	decodeSlots chan struct{}
}

// NewServer opens the archive and loads the configured rule pack. An empty
// RulePack path selects the built-in default profile.
func NewServer(opts Options) (*Server, error) {
	if strings.TrimSpace(opts.StorageDir) == "" {
		return nil, errors.New("storage dir is empty")
	}
	archivePath := strings.TrimSpace(opts.ArchivePath)
	if archivePath == "" {
		archivePath = filepath.Join(opts.StorageDir, "archive.db")
	}
	store, err := archive.Open(archivePath)
	if err != nil {
		return nil, err
	}

	rp := rules.DefaultRulePack()
	if path := strings.TrimSpace(opts.RulePack); path != "" {
		rp, err = rules.LoadRulePack(path)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("load rule pack: %w", err)
		}
	}

	lang, err := report.ParseLanguage(opts.Lang)
	if err != nil {
		store.Close()
		return nil, err
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	maxUpload := int64(opts.MaxUploadMB)
	if maxUpload <= 0 {
		maxUpload = 64
	}

	return &Server{
		storageDir:  opts.StorageDir,
		archive:     store,
		audit:       common.NewAuditLog(filepath.Join(opts.StorageDir, "audit.log")),
		rulePack:    rp,
		lang:        lang,
		maxUpload:   maxUpload << 20,
		decodeSlots: make(chan struct{}, concurrency),
	}, nil
}

// Close releases the archive store.
func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	return s.archive.Close()
}

// RulePack returns the acceptance profile the server validates against.
func (s *Server) RulePack() rules.RulePack {
	return s.rulePack
}
