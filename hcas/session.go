package hcas

import (
	"bytes"
	"database/sql"
	"errors"
	"io"
)

type hcasSession struct {
	hcas      *hcasInternal
	sessionId int64
}

func createSession(hcas *hcasInternal) (Session, error) {
	result, err := hcas.db.Exec("INSERT INTO sessions DEFAULT VALUES;")
	if err != nil {
		return nil, err
	}

	sessionId, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &hcasSession{
		hcas:      hcas,
		sessionId: sessionId,
	}, nil
}

// holdObjectId adds a session reference to an already-existing object row,
// assumed to run inside tx.
func holdObjectId(tx *sql.Tx, sessionId int64, objectId int64) error {
	_, err := tx.Exec(`
INSERT INTO session_deps (session_id, object_id) VALUES (?, ?);
UPDATE objects SET ref_count = ref_count + 1 WHERE id = ?;
`, sessionId, objectId, objectId)
	return err
}

func lookupObjectId(tx *sql.Tx, name Name) (int64, bool, error) {
	row := tx.QueryRow("SELECT id FROM objects WHERE name = ?", name.Name())
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

func (s *hcasSession) Hold(name Name) error {
	tx, err := s.hcas.db.Begin()
	if err != nil {
		return err
	}

	objectId, ok, err := lookupObjectId(tx, name)
	if err != nil {
		tx.Rollback()
		return err
	}
	if !ok {
		tx.Rollback()
		return errors.New("object with name does not exist")
	}

	err = holdObjectId(tx, s.sessionId, objectId)
	if err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *hcasSession) GetLabel(namespace string, label string) (Name, bool, error) {
	tx, err := s.hcas.db.Begin()
	if err != nil {
		return Name{}, false, err
	}

	row := tx.QueryRow(`
SELECT l.object_id, o.name FROM labels AS l
	JOIN objects AS o ON (l.object_id = o.id)
	WHERE l.namespace = ? AND l.label = ?;`, namespace, label)

	var objectId int64
	var rawName []byte
	err = row.Scan(&objectId, &rawName)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return Name{}, false, nil
	}
	if err != nil {
		tx.Rollback()
		return Name{}, false, err
	}

	err = holdObjectId(tx, s.sessionId, objectId)
	if err != nil {
		tx.Rollback()
		return Name{}, false, err
	}

	err = tx.Commit()
	if err != nil {
		return Name{}, false, err
	}

	return NewNameBytes(rawName), true, nil
}

func (s *hcasSession) ListLabels(namespace string) ([]string, error) {
	rows, err := s.hcas.db.Query(
		"SELECT label FROM labels WHERE namespace = ? ORDER BY label",
		namespace,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

func (s *hcasSession) SetLabel(namespace string, label string, name *Name) error {
	_, err := s.setLabelTx(namespace, label, false, nil, name)
	return err
}

func (s *hcasSession) TestAndSetLabel(namespace string, label string, test *Name, set *Name) (bool, error) {
	return s.setLabelTx(namespace, label, true, test, set)
}

// setLabelTx implements both the unconditional SetLabel (checkTest=false)
// and the CAS TestAndSetLabel (checkTest=true, test==nil meaning "must be
// absent"). When checking, the current value must match test before the
// swap proceeds; on mismatch the transaction rolls back and ok=false.
func (s *hcasSession) setLabelTx(namespace, label string, checkTest bool, test *Name, set *Name) (bool, error) {
	tx, err := s.hcas.db.Begin()
	if err != nil {
		return false, err
	}

	if checkTest {
		var curObjectId sql.NullInt64
		row := tx.QueryRow(`
SELECT object_id FROM labels WHERE namespace = ? AND label = ?`, namespace, label)
		err = row.Scan(&curObjectId)
		if err != nil && err != sql.ErrNoRows {
			tx.Rollback()
			return false, err
		}

		var curName Name
		hasCurrent := curObjectId.Valid
		if hasCurrent {
			var rawName []byte
			err = tx.QueryRow("SELECT name FROM objects WHERE id = ?", curObjectId.Int64).Scan(&rawName)
			if err != nil {
				tx.Rollback()
				return false, err
			}
			curName = NewNameBytes(rawName)
		}

		matches := (test == nil && !hasCurrent) || (test != nil && hasCurrent && test.Equal(curName))
		if !matches {
			tx.Rollback()
			return false, nil
		}
	}

	var setObjectId int64
	if set != nil {
		objectId, ok, err := lookupObjectId(tx, *set)
		if err != nil {
			tx.Rollback()
			return false, err
		}
		if !ok {
			tx.Rollback()
			return false, errors.New("object with name does not exist")
		}
		setObjectId = objectId
	}

	_, err = tx.Exec(`
UPDATE objects AS o SET ref_count = ref_count - 1 WHERE EXISTS (
	SELECT 1 FROM labels WHERE namespace = ? AND label = ? AND object_id = o.id
);`, namespace, label)
	if err != nil {
		tx.Rollback()
		return false, err
	}

	if set != nil {
		_, err = tx.Exec(`
INSERT OR REPLACE INTO labels (namespace, label, object_id) VALUES (?, ?, ?);`,
			namespace, label, setObjectId)
		if err != nil {
			tx.Rollback()
			return false, err
		}
		_, err = tx.Exec("UPDATE objects SET ref_count = ref_count + 1 WHERE id = ?", setObjectId)
		if err != nil {
			tx.Rollback()
			return false, err
		}
	} else {
		_, err = tx.Exec("DELETE FROM labels WHERE namespace = ? AND label = ?", namespace, label)
		if err != nil {
			tx.Rollback()
			return false, err
		}
	}

	return true, tx.Commit()
}

func (s *hcasSession) CreateObject(data []byte, deps ...Name) (Name, error) {
	ow, err := s.StreamObject(deps...)
	if err != nil {
		return Name{}, err
	}

	_, err = io.Copy(ow, bytes.NewReader(data))
	if err != nil {
		return Name{}, err
	}

	err = ow.Close()
	if err != nil {
		return Name{}, err
	}

	return ow.Name(), nil
}

func (s *hcasSession) StreamObject(deps ...Name) (ObjectWriter, error) {
	return createObjectStream(s, deps...)
}

func (s *hcasSession) Close() error {
	_, err := s.hcas.db.Exec(`
UPDATE objects AS o SET ref_count = ref_count - (
	SELECT COUNT(1) FROM session_deps AS sd WHERE sd.session_id = ? AND sd.object_id = o.id
) WHERE EXISTS (
	SELECT 1 FROM session_deps AS sd WHERE sd.session_id = ? AND sd.object_id = o.id
);
DELETE FROM session_deps WHERE session_id = ?;
DELETE FROM sessions WHERE id = ?;
`, s.sessionId, s.sessionId, s.sessionId, s.sessionId)
	return err
}

func cleanupSessionById(hcas *hcasInternal, sessionId int64) error {
	_, err := hcas.db.Exec(`
UPDATE objects AS o SET ref_count = ref_count - (
	SELECT COUNT(1) FROM session_deps AS sd WHERE sd.session_id = ? AND sd.object_id = o.id
) WHERE EXISTS (
	SELECT 1 FROM session_deps AS sd WHERE sd.session_id = ? AND sd.object_id = o.id
);
DELETE FROM session_deps WHERE session_id = ?;
DELETE FROM sessions WHERE id = ?;
`, sessionId, sessionId, sessionId, sessionId)
	return err
}
