package domain

import "path/filepath"

// MaxItems is the default upper bound on catalog size.
const MaxItems = 1000

// PhotoRecord is the persisted catalog entry describing one cached photo.
// Records are immutable once created.
type PhotoRecord struct {
	ID           string `json:"id"`
	Photographer string `json:"photographer"`
	ProfileURL   string `json:"profile_url"`
	Filename     string `json:"filename"` // relative to the cache directory
}

// Catalog is the ordered, append-only collection of cached photo records.
type Catalog []PhotoRecord

// IDs returns the set of record IDs in the catalog.
func (c Catalog) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(c))
	for _, r := range c {
		ids[r.ID] = struct{}{}
	}
	return ids
}

// Clone returns a copy that can be appended to without touching c.
func (c Catalog) Clone() Catalog {
	out := make(Catalog, len(c), len(c)+1)
	copy(out, c)
	return out
}

// Photo is the display view of a cached record handed to callers.
// URL holds the absolute local path of the payload, never a remote URL.
type Photo struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	Photographer string `json:"photographer"`
	ProfileURL   string `json:"profile_url"`
}

// ToPhoto resolves the record against the cache directory.
func (r PhotoRecord) ToPhoto(dir string) Photo {
	path := filepath.Join(dir, r.Filename)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return Photo{
		ID:           r.ID,
		URL:          path,
		Photographer: r.Photographer,
		ProfileURL:   r.ProfileURL,
	}
}
