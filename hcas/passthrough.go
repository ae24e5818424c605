package hcas

import (
	"database/sql"
	"errors"
	"io"
	"io/fs"
	"os"
)

// Mem reports whether an object with name exists, without adding a session
// reference to it.
func (s *hcasSession) Mem(name Name) (bool, error) {
	row := s.hcas.db.QueryRow("SELECT 1 FROM objects WHERE name = ?", name.Name())
	var discard int
	err := row.Scan(&discard)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Find opens and reads back a previously stored object, holding a session
// reference to it for as long as the session remains open.
func (s *hcasSession) Find(name Name) ([]byte, bool, error) {
	tx, err := s.hcas.db.Begin()
	if err != nil {
		return nil, false, err
	}

	objectId, ok, err := lookupObjectId(tx, name)
	if err != nil {
		tx.Rollback()
		return nil, false, err
	}
	if !ok {
		tx.Rollback()
		return nil, false, nil
	}

	err = holdObjectId(tx, s.sessionId, objectId)
	if err != nil {
		tx.Rollback()
		return nil, false, err
	}
	if err = tx.Commit(); err != nil {
		return nil, false, err
	}

	f, err := s.hcas.ObjectOpen(name)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// UnsafeAdd inserts data at the caller-supplied name, bypassing the usual
// hash-from-content-and-deps derivation performed by StreamObject/
// CreateObject. This mirrors the object finalize sequence in
// hcasObjectWriter.Close but trusts the name it is given rather than
// computing it.
func (s *hcasSession) UnsafeAdd(name Name, data []byte, deps ...Name) error {
	db := s.hcas.db

	objectDir, objectPath := s.hcas.dataFilePath(name)
	if err := os.Mkdir(objectDir, 0o777); err != nil && !errors.Is(err, fs.ErrExist) {
		return err
	}

	leaseTime := calculateLeaseTime(defaultObjectLease)

	result, err := db.Exec(`
BEGIN IMMEDIATE;

UPDATE objects SET lease_time=MAX(?, lease_time+1) WHERE name = ?;
`, leaseTime, name.Name())
	if err != nil {
		db.Exec("ROLLBACK")
		return err
	}

	rowCount, err := result.RowsAffected()
	if err != nil {
		db.Exec("ROLLBACK")
		return err
	}
	if rowCount > 0 {
		if _, err = db.Exec("COMMIT"); err != nil {
			return err
		}
		return s.Hold(name)
	}

	result, err = db.Exec(
		"INSERT INTO objects (name, ref_count, lease_time) VALUES (?, 0, ?)",
		name.Name(),
		leaseTime,
	)
	if err != nil {
		db.Exec("ROLLBACK")
		return err
	}

	objectId, err := result.LastInsertId()
	if err != nil {
		db.Exec("ROLLBACK")
		return err
	}

	for _, dep := range deps {
		depId, ok, err := lookupObjectId2(db, dep)
		if err != nil {
			db.Exec("ROLLBACK")
			return err
		}
		if !ok {
			db.Exec("ROLLBACK")
			return errors.New("Dependency does not exist")
		}

		_, err = db.Exec(`
INSERT INTO object_deps (parent_id, child_id) VALUES (?, ?);
UPDATE objects SET ref_count = ref_count + 1 WHERE id = ?;
`, objectId, depId, depId)
		if err != nil {
			db.Exec("ROLLBACK")
			return err
		}
	}

	if err = os.WriteFile(objectPath, data, 0o444); err != nil {
		db.Exec("ROLLBACK")
		return err
	}

	if _, err = db.Exec("COMMIT"); err != nil {
		return err
	}

	return s.Hold(name)
}

func lookupObjectId2(db *sql.DB, name Name) (int64, bool, error) {
	row := db.QueryRow("SELECT id FROM objects WHERE name = ?", name.Name())
	var objectId int64
	err := row.Scan(&objectId)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return objectId, true, nil
}
