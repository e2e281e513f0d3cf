package storage

import "fmt"

// Key prefixes of the default layout.
const (
	UploadPrefix   = "uploads/"
	LayoutPrefix   = "layouts/"
	TemplatePrefix = "templates/"

	nameIndexFile = "name_map.json"
)

// Keyer builds storage keys. Implementations must be deterministic.
type Keyer interface {
	// UploadKey returns the key of an uploaded file's raw bytes.
	UploadKey(fileID, filename string) string

	// LayoutKey returns the key of the layout detected for a file.
	LayoutKey(sourceID, filename string) string

	// TemplateKey returns the key of one template record.
	TemplateKey(id string) string

	// TemplatePrefix returns the prefix shared by all template records
	// and the name index.
	TemplatePrefix() string

	// NameIndexKey returns the key of the display-name index.
	NameIndexKey() string
}

// DefaultKeyer lays keys out as
//
//	uploads/<file_id>_<filename>
//	layouts/<file_id>_<filename>_layout.json
//	templates/<template_id>.json
//	templates/name_map.json
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// UploadKey implements Keyer.
func (DefaultKeyer) UploadKey(fileID, filename string) string {
	return fmt.Sprintf("%s%s_%s", UploadPrefix, fileID, filename)
}

// LayoutKey implements Keyer.
func (DefaultKeyer) LayoutKey(sourceID, filename string) string {
	return fmt.Sprintf("%s%s_%s_layout.json", LayoutPrefix, sourceID, filename)
}

// TemplateKey implements Keyer.
func (DefaultKeyer) TemplateKey(id string) string {
	return TemplatePrefix + id + ".json"
}

// TemplatePrefix implements Keyer.
func (DefaultKeyer) TemplatePrefix() string { return TemplatePrefix }

// NameIndexKey implements Keyer.
func (DefaultKeyer) NameIndexKey() string { return TemplatePrefix + nameIndexFile }

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation, so
// several users or projects can share one storage backend.
//
//	k := NewScopedKeyer(NewDefaultKeyer(), "acme/")
//	k.TemplateKey("42") // "acme/templates/42.json"
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// NewKeyer returns the default keyer, scoped to namespace when it is set.
func NewKeyer(namespace string) Keyer {
	if namespace == "" {
		return NewDefaultKeyer()
	}
	return NewScopedKeyer(NewDefaultKeyer(), namespace+"/")
}

func (k *ScopedKeyer) UploadKey(fileID, filename string) string {
	return k.prefix + k.inner.UploadKey(fileID, filename)
}

func (k *ScopedKeyer) LayoutKey(sourceID, filename string) string {
	return k.prefix + k.inner.LayoutKey(sourceID, filename)
}

func (k *ScopedKeyer) TemplateKey(id string) string {
	return k.prefix + k.inner.TemplateKey(id)
}

func (k *ScopedKeyer) TemplatePrefix() string {
	return k.prefix + k.inner.TemplatePrefix()
}

func (k *ScopedKeyer) NameIndexKey() string {
	return k.prefix + k.inner.NameIndexKey()
}
