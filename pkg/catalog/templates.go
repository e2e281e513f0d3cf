package catalog

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/sheetblocks/pkg/errors"
	"github.com/matzehuels/sheetblocks/pkg/layout"
	"github.com/matzehuels/sheetblocks/pkg/observability"
	"github.com/matzehuels/sheetblocks/pkg/storage"
)

// Template is a saved layout snapshot. Templates are immutable: saving the
// same layout again creates a new template with a new ID.
type Template struct {
	ID             string        `json:"template_id"`
	SourceFilename string        `json:"filename"`
	Layout         layout.Layout `json:"layout"`
	DisplayName    string        `json:"custom_name,omitempty"`
	Seq            int           `json:"seq"`
	CreatedAt      time.Time     `json:"created_at"`
	SchemaVersion  int           `json:"schema_version"`
}

// Name returns the display name, or the ID for anonymous templates.
func (t Template) Name() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.ID
}

// TemplateStore caches templates and the display-name index in memory on
// top of durable storage.
//
// The cached view is refreshed by Reload. It can only be stale with
// respect to writes made by other processes or other TemplateStore
// instances since the last Reload; writes through this instance are
// visible immediately. Save, Resolve (for names) and All reload first.
type TemplateStore struct {
	store  storage.Store
	keyer  storage.Keyer
	logger *log.Logger

	// Overridable for tests.
	now   func() time.Time
	newID func() string

	mu        sync.RWMutex
	templates map[string]Template
	names     map[string]string
}

// NewTemplateStore creates a template store. Nothing is read until the
// first call that needs it.
func NewTemplateStore(s storage.Store, keyer storage.Keyer, logger *log.Logger) *TemplateStore {
	if keyer == nil {
		keyer = storage.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &TemplateStore{
		store:     s,
		keyer:     keyer,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
		templates: make(map[string]Template),
		names:     make(map[string]string),
	}
}

// Reload re-reads every template record and the name index.
//
// Unreadable template records are skipped with a warning. An absent or
// corrupt name index is treated as empty, and index entries that point at
// templates which no longer exist are dropped.
func (s *TemplateStore) Reload(ctx context.Context) error {
	keys, err := s.store.List(ctx, s.keyer.TemplatePrefix())
	if err != nil {
		return err
	}

	indexKey := s.keyer.NameIndexKey()
	templates := make(map[string]Template, len(keys))
	for _, key := range keys {
		if key == indexKey || !strings.HasSuffix(key, ".json") {
			continue
		}
		t, err := s.readTemplate(ctx, key)
		if err != nil {
			s.logger.Warn("skipping unreadable template", "key", key, "error", err)
			continue
		}
		if t == nil {
			continue
		}
		if t.ID == "" {
			t.ID = strings.TrimSuffix(path.Base(key), ".json")
		}
		templates[t.ID] = *t
	}

	names, err := s.readNameIndex(ctx)
	if err != nil {
		return err
	}
	for name, id := range names {
		if _, ok := templates[id]; !ok {
			s.logger.Warn("dropping stale name index entry", "name", name, "template_id", id)
			delete(names, name)
		}
	}

	s.mu.Lock()
	s.templates = templates
	s.names = names
	s.mu.Unlock()

	s.logger.Debug("reloaded templates", "templates", len(templates), "names", len(names))
	return nil
}

// Save promotes l to a new template and returns its ID.
//
// A non-empty displayName must not be indexed yet; otherwise Save fails
// with DUPLICATE_NAME and nothing is written. If the template record cannot
// be written after the name index, the dangling index entry is dropped on
// the next Reload.
func (s *TemplateStore) Save(ctx context.Context, l layout.Layout, sourceFilename, displayName string) (string, error) {
	if err := s.Reload(ctx); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if displayName != "" {
		if _, taken := s.names[displayName]; taken {
			return "", errors.New(errors.ErrCodeDuplicateName, "Template name '%s' already exists", displayName)
		}
	}

	seq := 0
	for _, t := range s.templates {
		seq = max(seq, t.Seq)
	}

	t := Template{
		ID:             s.newID(),
		SourceFilename: sourceFilename,
		Layout:         l.Clone(),
		DisplayName:    displayName,
		Seq:            seq + 1,
		CreatedAt:      s.now().UTC(),
		SchemaVersion:  SchemaVersion,
	}

	data, err := encodeTemplate(t)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "encode template")
	}

	// The index goes first: an entry whose template never got written is
	// dropped by the next Reload, so a failed Save can be retried.
	if displayName != "" {
		names := make(map[string]string, len(s.names)+1)
		for k, v := range s.names {
			names[k] = v
		}
		names[displayName] = t.ID
		if err := s.writeNameIndex(ctx, names); err != nil {
			return "", err
		}
		s.names = names
	}

	if err := s.store.Put(ctx, s.keyer.TemplateKey(t.ID), data); err != nil {
		return "", err
	}
	observability.Store().OnWrite(ctx, "template", len(data))
	s.templates[t.ID] = t

	s.logger.Debug("saved template", "template_id", t.ID, "name", displayName, "blocks", len(t.Layout.Blocks))
	return t.ID, nil
}

// Resolve maps a template ID or display name to a template ID.
// An ID wins over a display name that happens to be spelled the same.
func (s *TemplateStore) Resolve(ctx context.Context, nameOrID string) (string, bool, error) {
	if nameOrID == "" {
		return "", false, nil
	}
	if s.isTemplateID(nameOrID) {
		ok, err := s.store.Exists(ctx, s.keyer.TemplateKey(nameOrID))
		if err != nil {
			return "", false, err
		}
		if ok {
			return nameOrID, true, nil
		}
	}

	if err := s.Reload(ctx); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.names[nameOrID]
	return id, ok, nil
}

// Get reads one template from storage. It fails with NOT_FOUND if there is
// no record for id.
func (s *TemplateStore) Get(ctx context.Context, id string) (*Template, error) {
	if !s.isTemplateID(id) {
		return nil, errors.NotFound("Template not found")
	}
	t, err := s.readTemplate(ctx, s.keyer.TemplateKey(id))
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.NotFound("Template not found")
	}
	if t.ID == "" {
		t.ID = id
	}

	s.mu.Lock()
	s.templates[t.ID] = *t
	s.mu.Unlock()
	return t, nil
}

// Lookup resolves nameOrID and returns the template.
func (s *TemplateStore) Lookup(ctx context.Context, nameOrID string) (*Template, error) {
	id, ok, err := s.Resolve(ctx, nameOrID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NotFound("Template not found")
	}
	return s.Get(ctx, id)
}

// All reloads and returns every template in registration order.
func (s *TemplateStore) All(ctx context.Context) ([]Template, error) {
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

// Names returns a copy of the display-name index as of the last reload.
func (s *TemplateStore) Names(ctx context.Context) (map[string]string, error) {
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.names))
	for k, v := range s.names {
		out[k] = v
	}
	return out, nil
}

// isTemplateID reports whether id can name a template record. The name
// index shares the template prefix, so its key is never an ID.
func (s *TemplateStore) isTemplateID(id string) bool {
	if errors.ValidateIdentifier("template_id", id) != nil {
		return false
	}
	return s.keyer.TemplateKey(id) != s.keyer.NameIndexKey()
}

// readTemplate returns nil, nil when key does not exist.
func (s *TemplateStore) readTemplate(ctx context.Context, key string) (*Template, error) {
	data, ok, err := s.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	t, migrated, err := decodeTemplate(data)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "template %s", key)
	}
	if migrated {
		s.logger.Debug("upgraded legacy template record", "key", key)
		observability.Store().OnMigrate(ctx, "template", 0)
	}
	return &t, nil
}

func (s *TemplateStore) readNameIndex(ctx context.Context) (map[string]string, error) {
	key := s.keyer.NameIndexKey()
	data, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return make(map[string]string), nil
	}
	names, err := decodeNameIndex(data)
	if err != nil {
		s.logger.Warn("name index is corrupt, treating as empty", "key", key, "error", err)
		return make(map[string]string), nil
	}
	return names, nil
}

func (s *TemplateStore) writeNameIndex(ctx context.Context, names map[string]string) error {
	data, err := json.Marshal(names)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode name index")
	}
	if err := s.store.Put(ctx, s.keyer.NameIndexKey(), data); err != nil {
		return err
	}
	observability.Store().OnWrite(ctx, "name_index", len(data))
	return nil
}
