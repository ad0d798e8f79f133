package common

import (
	"os"

	"gopkg.in/ini.v1"
)

const (
	// size of a data page in byte
	PageSize = 4096
	// logical page holding the serialized catalog meta
	CatalogMetaPageID = 0
	// logical page holding the index id -> root page id map
	IndexRootsPageID = 1
	// number of logical pages reserved at database creation
	NumReservedPages = 2

	// default number of frames of a buffer pool
	DefaultPoolSize = 64
	// pool size used by most tests
	BufferPoolMaxFrameNumForTest = 32

	// upper bound of declared Char column length
	MaxCharLength = 2048

	// default directory where database files are placed
	DefaultDatabaseDir = "./databases"
)

// Settings are the few runtime knobs of the storage engine. Everything not
// listed here is a compile-time constant.
type Settings struct {
	DatabaseDir string
	PoolSize    uint32
}

func DefaultSettings() *Settings {
	return &Settings{DatabaseDir: DefaultDatabaseDir, PoolSize: DefaultPoolSize}
}

// LoadSettings reads an optional ini file. A missing file is not an error and
// yields the defaults.
func LoadSettings(path string) (*Settings, error) {
	ret := DefaultSettings()
	if _, err := os.Stat(path); err != nil {
		return ret, nil
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	sec := cfg.Section("storage")
	if key, err := sec.GetKey("database_dir"); err == nil {
		ret.DatabaseDir = key.String()
	}
	if key, err := sec.GetKey("pool_size"); err == nil {
		if v, err := key.Uint(); err == nil && v > 0 {
			ret.PoolSize = uint32(v)
		}
	}
	return ret, nil
}
