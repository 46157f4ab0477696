package config

import (
	"path/filepath"
	"sort"
)

// Policy carries the home library, user profile, and category defaults applied
// when creating (new_defaults) or overlaying (overlay_defaults) an identity.
type Policy struct {
	HomeLibrary    string            `toml:"home_library"`
	UserProfile    string            `toml:"user_profile"`
	UserCategories map[string]string `toml:"user_categories"`

	// Categories is UserCategories keyed by category number; filled by normalize.
	Categories map[int]string `toml:"-"`
}

// CategoryNumbers returns the configured category numbers in ascending order.
func (p Policy) CategoryNumbers() []int {
	out := make([]int, 0, len(p.Categories))
	for n := range p.Categories {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Client describes one enrolling institution.
type Client struct {
	Namespace       string `toml:"namespace"`
	ID              string `toml:"id"`
	Name            string `toml:"name"`
	Contact         string `toml:"contact"`
	Schema          string `toml:"schema"`
	KeyPrefix       string `toml:"key_prefix"`
	PreserveUploads bool   `toml:"preserve_uploads"`
	LoadQueue       string `toml:"load_queue"`
	IngestQueue     string `toml:"ingest_queue"`
	NewDefaults     Policy `toml:"new_defaults"`
	OverlayDefaults Policy `toml:"overlay_defaults"`
}

// NID returns the client's namespace:id identifier.
func (c Client) NID() string {
	return c.Namespace + ":" + c.ID
}

// DirName returns the drop directory name, namespace immediately followed by id.
func (c Client) DirName() string {
	return c.Namespace + c.ID
}

// IncomingDir returns the directory watched for this client's uploads.
func (c Client) IncomingDir(root string) string {
	return filepath.Join(root, c.DirName(), "incoming")
}

// PrimaryKey derives the identity barcode for a source record identifier.
func (c Client) PrimaryKey(sourceID string) string {
	return c.KeyPrefix + sourceID
}
