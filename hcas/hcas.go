package hcas

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const (
	VersionLatest = 1

	MetadataPath = "metadata.sqlite"
	DataPath     = "data"
	TempPath     = "tmp"
)

const hcasSchemaInit = `
CREATE TABLE version (
	version INTEGER
);

CREATE TABLE objects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name BLOB NOT NULL UNIQUE,
	ref_count INTEGER NOT NULL,
	lease_time INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX object_by_ref_count ON objects(ref_count);

CREATE TABLE object_deps (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	parent_id INTEGER NOT NULL,
	child_id INTEGER NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES objects(id) ON DELETE CASCADE,
	FOREIGN KEY (child_id) REFERENCES objects(id) ON DELETE CASCADE
);
CREATE INDEX object_deps_by_parent ON object_deps(parent_id, child_id);

CREATE TABLE sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE session_deps (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id INTEGER NOT NULL,
	object_id INTEGER NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE,
	FOREIGN KEY (object_id) REFERENCES objects(id) ON DELETE CASCADE
);
CREATE INDEX session_deps_by_session ON session_deps(session_id, object_id);

CREATE TABLE labels (
	namespace TEXT NOT NULL,
	label TEXT NOT NULL,
	object_id INTEGER NOT NULL,
	PRIMARY KEY (namespace, label)
);
CREATE INDEX labels_by_object ON labels(object_id);

-- Objects whose data file has been unlinked from objects/object_deps but
-- whose backing file may still need to be removed from disk. Entries here
-- survive process crashes between the metadata delete and the unlink.
CREATE TABLE temp_objects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name BLOB NOT NULL
);
`

type hcasInternal struct {
	version  int64
	basePath string
	db       *sql.DB
}

func OpenHcas(basePath string) (Hcas, error) {
	basePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", filepath.Join(basePath, MetadataPath))
	if err != nil {
		return nil, err
	}

	row := db.QueryRow("SELECT version FROM version;")

	var version int64
	err = row.Scan(&version)
	if err != nil {
		db.Close()
		return nil, err
	}

	if version != VersionLatest {
		db.Close()
		return nil, errors.New("unsupported hcas version")
	}

	return &hcasInternal{
		version:  version,
		basePath: basePath,
		db:       db,
	}, nil
}

func CreateHcas(basePath string) (Hcas, error) {
	basePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(filepath.Join(basePath, DataPath), 0o777)
	if err != nil {
		return nil, err
	}
	err = os.MkdirAll(filepath.Join(basePath, TempPath), 0o777)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", filepath.Join(basePath, MetadataPath))
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(hcasSchemaInit)
	if err != nil {
		db.Close()
		return nil, err
	}

	_, err = db.Exec("INSERT INTO version VALUES (?)", VersionLatest)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &hcasInternal{
		version:  VersionLatest,
		basePath: basePath,
		db:       db,
	}, nil
}

func (h *hcasInternal) Close() error {
	return h.db.Close()
}

func (h *hcasInternal) CreateSession() (Session, error) {
	return createSession(h)
}

// dataFilePath returns the containing directory and full path of the data
// file backing name, sharded by the first byte of the digest so no single
// directory accumulates an unbounded number of entries.
func (h *hcasInternal) dataFilePath(name Name) (dir string, path string) {
	hexName := name.HexName()
	dir = filepath.Join(h.basePath, DataPath, hexName[:2])
	path = filepath.Join(dir, hexName[2:])
	return
}

func (h *hcasInternal) ObjectPath(name Name) string {
	_, path := h.dataFilePath(name)
	return path
}

func (h *hcasInternal) ObjectOpen(name Name) (*os.File, error) {
	return os.Open(h.ObjectPath(name))
}

func (h *hcasInternal) tempDir() string {
	return filepath.Join(h.basePath, TempPath)
}
