package sensorlog

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/snappy"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"
)

// Export formats accepted by the /export endpoint.
const (
	ExportFormatCSV    = "csv"
	ExportFormatSnappy = "ndjson.sz"
	ExportFormatSQLite = "sqlite"
)

// ExportCSV writes records as CSV. The header is the timestamp column
// followed by the sensor's cataloged parameters in their stable order;
// a record missing a parameter leaves that cell empty.
func ExportCSV(w io.Writer, sensor Sensor, records []Record) error {
	cw := csv.NewWriter(w)

	header := append([]string{"timestamp"}, sensor.Params...)
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for _, rec := range records {
		row[0] = rec.Stamp()
		for i, p := range sensor.Params {
			row[i+1] = csvCell(rec.Fields[p])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvCell(v Value) string {
	switch v.Kind {
	case ValueNumber:
		if v.Str != "" {
			return v.Str
		}
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// ExportSnappyNDJSON writes records as newline-delimited JSON inside a
// snappy framed stream, one record per line in file order.
func ExportSnappyNDJSON(w io.Writer, records []Record) error {
	sw := snappy.NewBufferedWriter(w)
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		line = append(line, '\n')
		if _, err := sw.Write(line); err != nil {
			return err
		}
	}
	return sw.Close()
}

// ExportSQLite materializes records into a single-table SQLite database and
// streams the database file to w. The table has a TEXT timestamp column and
// one REAL column per cataloged numeric parameter, so the snapshot is
// directly usable with standard SQLite tools.
func ExportSQLite(w io.Writer, sensor Sensor, records []Record) error {
	tmp, err := os.CreateTemp("", "sensorlog-export-*.db")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	if err := writeSQLiteSnapshot(tmpPath, sensor, records); err != nil {
		return err
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func writeSQLiteSnapshot(path string, sensor Sensor, records []Record) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	cols := make([]string, 0, len(sensor.Params)+1)
	cols = append(cols, `"timestamp" TEXT NOT NULL`)
	for _, p := range sensor.Params {
		cols = append(cols, fmt.Sprintf("%s REAL", quoteIdent(p)))
	}
	if _, err := db.Exec(fmt.Sprintf("CREATE TABLE records (%s)", strings.Join(cols, ", "))); err != nil {
		return err
	}

	placeholders := make([]string, len(sensor.Params)+1)
	names := make([]string, len(sensor.Params)+1)
	names[0] = `"timestamp"`
	placeholders[0] = "?"
	for i, p := range sensor.Params {
		names[i+1] = quoteIdent(p)
		placeholders[i+1] = "?"
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO records (%s) VALUES (%s)",
		strings.Join(names, ", "), strings.Join(placeholders, ", ")))
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	args := make([]any, len(sensor.Params)+1)
	for _, rec := range records {
		args[0] = rec.Stamp()
		for i, p := range sensor.Params {
			if v, ok := rec.Fields[p]; ok && v.Kind == ValueNumber {
				args[i+1] = v.Num
			} else {
				args[i+1] = nil
			}
		}
		if _, err := stmt.Exec(args...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// quoteIdent quotes a parameter name for use as a SQLite column identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// setupExportRoutes configures the bulk export endpoint
func setupExportRoutes(mux *http.ServeMux, engine *Engine, logger *slog.Logger, wrap middlewareWrapper) {
	mux.HandleFunc("/export/", wrap(func(w http.ResponseWriter, r *http.Request) {
		sensor := sensorFromPath(r.URL.Path, "/export/")
		format := r.URL.Query().Get("format")
		if format == "" {
			format = ExportFormatCSV
		}

		desc, ok := engine.Catalog()[sensor]
		if !ok {
			writeQueryError(w, logger, ErrUnknownSensor)
			return
		}

		start, end, err := parseRangeBounds(r)
		if err != nil {
			writeQueryError(w, logger, err)
			return
		}
		records, err := engine.RangeQuery(sensor, start, end)
		if err != nil {
			writeQueryError(w, logger, err)
			return
		}

		base := filepath.Base(desc.File)
		switch format {
		case ExportFormatCSV:
			w.Header().Set("Content-Type", "text/csv")
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+".csv"))
			err = ExportCSV(w, desc, records)
		case ExportFormatSnappy:
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+".sz"))
			err = ExportSnappyNDJSON(w, records)
		case ExportFormatSQLite:
			w.Header().Set("Content-Type", "application/vnd.sqlite3")
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+".db"))
			err = ExportSQLite(w, desc, records)
		default:
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown format: " + format})
			return
		}
		if err != nil {
			// Headers are already sent; all that is left is to log.
			logger.Error("export failed", "sensor", sensor, "format", format, "error", err)
		}
	}))
}
