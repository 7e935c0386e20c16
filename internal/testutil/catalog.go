// Package testutil provides a shared entity model and database fixtures for tests.
package testutil

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/aql-go/catalog"
)

// CatalogYAML is the test entity model.
//
// Patient and Visit are single-table entities linked by a one-to-many collection.
// Person spans two tables: person (primary) and employee (secondary, keyed by person_id).
const CatalogYAML = `
format: "1.0"
entities:
  - name: Patient
    table: patient
    id: { name: id, column: id, type: integer }
    properties:
      - { name: name, column: name, type: string }
      - { name: gender, column: gender, type: string }
      - { name: birth, column: birth, type: timestamp }
    associations:
      - { name: visits, kind: one-to-many, target: Visit, column: patient_id }
    filters:
      - name: byGender
        condition: "gender = :gender"
        parameters: { gender: string }
  - name: Visit
    table: visit
    id: { name: id, column: id, type: integer }
    properties:
      - { name: reason, column: reason, type: string }
      - { name: amount, column: amount, type: float }
    associations:
      - { name: patient, kind: many-to-one, target: Patient, column: patient_id }
  - name: Person
    table: person
    id: { name: id, column: id, type: integer }
    secondary_tables:
      - { name: employee, key: [person_id] }
    properties:
      - { name: name, column: name, type: string }
      - { name: salary, column: salary, type: float, table: employee }
      - { name: dept, column: dept, type: string, table: employee }
`

// Schema creates the tables for CatalogYAML.
const Schema = `
CREATE TABLE patient (id INTEGER PRIMARY KEY, name TEXT, gender TEXT, birth TIMESTAMP);
CREATE TABLE visit (id INTEGER PRIMARY KEY, reason TEXT, amount REAL, patient_id INTEGER REFERENCES patient(id));
CREATE TABLE person (id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE employee (person_id INTEGER PRIMARY KEY REFERENCES person(id), salary REAL, dept TEXT);
`

// Seed inserts three patients, four visits and three people.
const Seed = `
INSERT INTO patient (id, name, gender) VALUES (1, 'zhangsan', 'M'), (2, 'lisi', 'F'), (3, 'wangwu', 'O');
INSERT INTO visit (id, reason, amount, patient_id) VALUES
  (10, 'checkup', 20.0, 1), (11, 'flu', 35.5, 1), (12, 'checkup', 20.0, 2), (13, 'xray', 90.0, 3);
INSERT INTO person (id, name) VALUES (1, 'ada'), (2, 'bob'), (3, 'cy');
INSERT INTO employee (person_id, salary, dept) VALUES (1, 100, 'eng'), (2, 90, 'eng'), (3, 80, 'ops');
`

// Catalog returns the test catalog.
func Catalog(t testing.TB) *catalog.Registry {
	t.Helper()
	reg, err := catalog.Load(strings.NewReader(CatalogYAML))
	require.NoError(t, err)
	return reg
}

// OpenSQLite opens a private in-memory SQLite database with Schema and Seed applied.
// The pool is limited to one connection so temporary tables stay visible.
func OpenSQLite(t testing.TB) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, script := range []string{Schema, Seed} {
		for _, stmt := range strings.Split(script, ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			_, err := db.ExecContext(ctx, stmt)
			require.NoError(t, err, stmt)
		}
	}
	return db
}
