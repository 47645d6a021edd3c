// Package document manages whole documents on top of the content store:
// creating a document tree with its home page, and the page and directory
// operations exposed to document editors.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/marmos91/dittodocs/internal/logger"
	"github.com/marmos91/dittodocs/pkg/file"
	"github.com/marmos91/dittodocs/pkg/page"
	"github.com/marmos91/dittodocs/pkg/store/content"
)

// DefaultTitle is the title of the home page of a new document.
const DefaultTitle = "Default Title"

var (
	// ErrInvalidDocumentID is returned for ids that cannot name a document
	// directory.
	ErrInvalidDocumentID = errors.New("invalid document id")

	// ErrUnavailable is returned when the remote store did not accept a
	// write. The cause has been logged by the store.
	ErrUnavailable = errors.New("remote store unavailable")
)

// Config contains document service settings.
type Config struct {
	// DefaultTitle is the title of new home pages (default: DefaultTitle)
	DefaultTitle string

	// NewID generates document ids (default: random UUIDs)
	NewID func() string
}

// Service creates documents and edits their pages.
type Service struct {
	content *content.Store
	title   string
	newID   func() string
}

// NewService creates a document service on top of store.
func NewService(store *content.Store, cfg Config) *Service {
	if cfg.DefaultTitle == "" {
		cfg.DefaultTitle = DefaultTitle
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Service{
		content: store,
		title:   cfg.DefaultTitle,
		newID:   cfg.NewID,
	}
}

// ValidateID rejects ids that would escape or hide the document directory.
func ValidateID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == ".." || file.IsHiddenName(id) {
		return fmt.Errorf("%w: %q", ErrInvalidDocumentID, id)
	}
	return nil
}

// Create allocates a new document: its root directory and home page.
//
// Returns the id of the new document.
func (s *Service) Create(ctx context.Context) (string, error) {
	id := s.newID()
	if err := ValidateID(id); err != nil {
		return "", err
	}

	// ========================================================================
	// Step 1: Root directory
	// ========================================================================

	root, err := s.content.Write(ctx, file.RootAddress(id), file.TypeDirectory, file.Directory{})
	if err != nil {
		return "", err
	}
	if root == nil {
		return "", fmt.Errorf("failed to create document %s: %w", id, ErrUnavailable)
	}

	// ========================================================================
	// Step 2: Home page
	// ========================================================================

	if _, err := s.Initialize(ctx, id); err != nil {
		return "", err
	}

	logger.Info("Created document %s", id)
	return id, nil
}

// Initialize writes the default home page of document id.
func (s *Service) Initialize(ctx context.Context, id string) (*file.File, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	home := file.ChildAddress(file.RootAddress(id), page.IndexName)
	f, err := s.content.Write(ctx, home, file.TypePage, file.Page{
		Title:   s.title,
		Content: json.RawMessage(`[]`),
	})
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("failed to initialize document %s: %w", id, ErrUnavailable)
	}
	return f, nil
}

// ReadPage reads the page a logical address resolves to ("guide" reads
// "guide.page", "docs/" reads "docs/index.page").
//
// Returns nil when the page does not exist.
func (s *Service) ReadPage(ctx context.Context, a file.Address) (*file.File, error) {
	resolved, err := resolvePage(a)
	if err != nil {
		return nil, err
	}
	return s.content.Read(ctx, resolved)
}

// WritePage stores p at the page a logical address resolves to.
func (s *Service) WritePage(ctx context.Context, a file.Address, p file.Page) (*file.File, error) {
	resolved, err := resolvePage(a)
	if err != nil {
		return nil, err
	}
	return s.content.Write(ctx, resolved, file.TypePage, p)
}

// Mkdir creates directory path inside document id, parents included.
func (s *Service) Mkdir(ctx context.Context, id, path string) (*file.File, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	dir := file.EnsureDirPath(file.Address{DocumentID: id, Path: strings.TrimPrefix(path, "/")})
	return s.content.Write(ctx, dir, file.TypeDirectory, file.Directory{})
}

// Delete removes document id and everything in it.
func (s *Service) Delete(ctx context.Context, id string) (content.RemoveStatus, error) {
	if err := ValidateID(id); err != nil {
		return content.RemoveSkipped, err
	}
	return s.content.Remove(ctx, file.RootAddress(id))
}

func resolvePage(a file.Address) (file.Address, error) {
	if err := ValidateID(a.DocumentID); err != nil {
		return file.Address{}, err
	}
	if !page.IsPage(a) {
		return file.Address{}, file.NewError(file.ErrInvalidData,
			fmt.Sprintf("%s is not a page address", a), file.FilePath(a))
	}
	return page.Resolve(a), nil
}
