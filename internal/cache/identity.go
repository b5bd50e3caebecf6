package cache

import (
	"fmt"
	"os"
	"path/filepath"
)

// Identity is the content key of a source clip.
type Identity struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func (id Identity) String() string {
	return fmt.Sprintf("%s (%d bytes)", id.Name, id.Size)
}

// NewIdentity stats path and returns its identity.
func NewIdentity(path string) (Identity, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Identity{}, err
	}
	if st.IsDir() {
		return Identity{}, fmt.Errorf("%s is a directory", path)
	}
	return Identity{Name: filepath.Base(path), Size: st.Size()}, nil
}
