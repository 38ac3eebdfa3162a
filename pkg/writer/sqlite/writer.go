// Package sqlite provides SQLite database writing for comparison scores
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/PrositGo/pkg/core"
)

const (
	// Schema version written to HeaderTable
	schemaVersion = 1
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	// Date format for MaintenanceTable
	maintenanceDateFormat = "2006 01 02"
)

// ScoreRecord is one scored comparison of a predicted spectrum against an
// observed or library spectrum.
type ScoreRecord struct {
	Peptide     core.Peptide
	PrecursorMZ float64
	IRT         *float64 // predicted iRT, if an iRT model ran

	SourceFile string // observed run or library file
	ScanNumber int    // 1-based scan; 0 for library entries
	Name       string // library entry name, e.g. "PEPTIDE/2"

	Score          float64
	MatchedPeaks   int
	PredictedPeaks int

	PredictedMZ        []float64
	PredictedIntensity []float64
}

// Writer handles writing scores to SQLite database files
type Writer struct {
	db          *sql.DB
	outputPath  string
	peptideStmt *sql.Stmt
	scoreStmt   *sql.Stmt
	peptideIDs  map[string]int64
	scoreID     int64
	description string
}

// NewWriter creates a new SQLite writer. description is stored in HeaderTable.
func NewWriter(outputPath, description string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:          db,
		outputPath:  outputPath,
		peptideIDs:  make(map[string]int64),
		scoreID:     1,
		description: description,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS PeptideTable (
		PeptideId INTEGER PRIMARY KEY,
		ModifiedSequence TEXT NOT NULL,
		Charge INTEGER NOT NULL,
		CollisionEnergy DOUBLE,
		PrecursorMz DOUBLE,
		iRT DOUBLE
	);

	CREATE TABLE IF NOT EXISTS ScoreTable (
		ScoreId INTEGER PRIMARY KEY,
		PeptideId INTEGER REFERENCES PeptideTable(PeptideId),
		SourceFile TEXT,
		ScanNumber INTEGER,
		Name TEXT,
		Score DOUBLE,
		MatchedPeaks INTEGER,
		PredictedPeaks INTEGER,
		blobPredictedMass BLOB,
		blobPredictedIntensity BLOB
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		LastModifiedDate TEXT,
		Description TEXT
	);

	CREATE TABLE IF NOT EXISTS MaintenanceTable (
		CreationDate TEXT,
		NoofScores INTEGER,
		Description TEXT
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.peptideStmt, err = w.db.Prepare(`
		INSERT INTO PeptideTable (
			ModifiedSequence, Charge, CollisionEnergy, PrecursorMz, iRT
		) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare peptide statement: %w", err)
	}

	w.scoreStmt, err = w.db.Prepare(`
		INSERT INTO ScoreTable (
			ScoreId, PeptideId, SourceFile, ScanNumber, Name, Score,
			MatchedPeaks, PredictedPeaks, blobPredictedMass, blobPredictedIntensity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare score statement: %w", err)
	}

	return nil
}

func peptideKey(p core.Peptide) string {
	return p.ModifiedSequence + "/" + strconv.Itoa(p.Charge) + "@" +
		strconv.FormatFloat(p.CollisionEnergy, 'f', -1, 64)
}

// peptideID returns the row of a peptide, inserting it on first use
func (w *Writer) peptideID(rec *ScoreRecord) (int64, error) {
	key := peptideKey(rec.Peptide)
	if id, ok := w.peptideIDs[key]; ok {
		return id, nil
	}

	// Handle optional iRT
	var irt interface{}
	if rec.IRT != nil && !math.IsNaN(*rec.IRT) {
		irt = *rec.IRT
	}

	res, err := w.peptideStmt.Exec(
		rec.Peptide.ModifiedSequence,
		rec.Peptide.Charge,
		rec.Peptide.CollisionEnergy,
		rec.PrecursorMZ,
		irt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert peptide: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read peptide id: %w", err)
	}
	w.peptideIDs[key] = id
	return id, nil
}

// WriteScore writes a single score to the database
func (w *Writer) WriteScore(rec *ScoreRecord) error {
	if len(rec.PredictedMZ) != len(rec.PredictedIntensity) {
		return fmt.Errorf("%d predicted masses but %d intensities",
			len(rec.PredictedMZ), len(rec.PredictedIntensity))
	}

	pepID, err := w.peptideID(rec)
	if err != nil {
		return err
	}

	_, err = w.scoreStmt.Exec(
		w.scoreID,                              // ScoreId
		pepID,                                  // PeptideId
		rec.SourceFile,                         // SourceFile
		rec.ScanNumber,                         // ScanNumber
		rec.Name,                               // Name
		rec.Score,                              // Score
		rec.MatchedPeaks,                       // MatchedPeaks
		rec.PredictedPeaks,                     // PredictedPeaks
		EncodeFloat64s(rec.PredictedMZ),        // blobPredictedMass
		EncodeFloat64s(rec.PredictedIntensity), // blobPredictedIntensity
	)
	if err != nil {
		return fmt.Errorf("failed to insert score: %w", err)
	}

	w.scoreID++
	return nil
}

// EncodeFloat64s encodes values as a little-endian float64 blob
func EncodeFloat64s(values []float64) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// DecodeFloat64s decodes a blob written by EncodeFloat64s
func DecodeFloat64s(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 8", len(blob))
	}
	out := make([]float64, len(blob)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return out, nil
}

// Count returns the number of scores written so far
func (w *Writer) Count() int {
	return int(w.scoreID - 1)
}

// Finalize writes the header and maintenance tables and closes the database
func (w *Writer) Finalize() error {
	now := time.Now()

	// Write HeaderTable
	_, err := w.db.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, LastModifiedDate, Description)
		VALUES (?, ?, ?, ?)
	`, schemaVersion, now.Format(headerDateFormat), now.Format(headerDateFormat), w.description)
	if err != nil {
		return fmt.Errorf("failed to insert header: %w", err)
	}

	// Write MaintenanceTable
	_, err = w.db.Exec(`
		INSERT INTO MaintenanceTable (CreationDate, NoofScores, Description)
		VALUES (?, ?, ?)
	`, now.Format(maintenanceDateFormat), w.Count(), w.description)
	if err != nil {
		return fmt.Errorf("failed to insert maintenance: %w", err)
	}

	return w.close()
}

func (w *Writer) close() error {
	// Close prepared statements
	if w.peptideStmt != nil {
		w.peptideStmt.Close()
	}
	if w.scoreStmt != nil {
		w.scoreStmt.Close()
	}

	// Close database
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Close closes the database without writing header rows. Use it to abandon
// a database after an error; Finalize is the normal way to finish.
func (w *Writer) Close() error {
	return w.close()
}
