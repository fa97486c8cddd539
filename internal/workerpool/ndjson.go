package workerpool

import (
	"bufio"
	"os"
	"path/filepath"

	"ulp/pkg/value"
)

// ndjsonPath is the canonical path a Task's parsed records are written to,
// matching mapping.Store.RegisterFile's own path computation so the
// ParsedFileStats entry it produces always resolves to a real file.
func ndjsonPath(uploadDir, jobID, taskID string) (string, error) {
	dir := filepath.Join(uploadDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Abs(filepath.Join(dir, taskID+".data"))
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

// ndjsonReader streams Values back out of a file written by drainToNDJSON,
// for the ShipData handler.
type ndjsonReader struct {
	f       *os.File
	scanner *bufio.Scanner
}

func newNDJSONReader(path string) (*ndjsonReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &ndjsonReader{f: f, scanner: sc}, nil
}

func (r *ndjsonReader) Next() (value.Value, bool, error) {
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		v, err := value.Parse(line)
		if err != nil {
			return value.Value{}, false, err
		}
		return v, true, nil
	}
	if err := r.scanner.Err(); err != nil {
		return value.Value{}, false, err
	}
	return value.Value{}, false, nil
}

func (r *ndjsonReader) Close() error { return r.f.Close() }
