package migrate

import (
	"bufio"
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// Validate checks every migration in fsys: file names carry a unique 14-digit
// version, the Up section precedes the Down section and StatementBegin/End
// annotations pair up.
func Validate(fsys fs.FS) error {
	files, err := migrationFiles(fsys)
	if err != nil {
		return err
	}
	for _, name := range files {
		if err := validateFile(fsys, name); err != nil {
			return err
		}
	}
	return nil
}

func migrationFiles(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	seen := map[string]string{}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return nil, fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name
		files = append(files, name)
	}
	return files, nil
}

func latestVersion(fsys fs.FS) (int64, error) {
	files, err := migrationFiles(fsys)
	if err != nil {
		return 0, err
	}
	var latest int64
	for _, name := range files {
		v, _ := strconv.ParseInt(name[:14], 10, 64)
		if v > latest {
			latest = v
		}
	}
	return latest, nil
}

func validateFile(fsys fs.FS, name string) error {
	f, err := fsys.Open(name)
	if err != nil {
		return fmt.Errorf("open %q: %w", name, err)
	}
	defer f.Close()

	var up, down, inStatement bool
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		switch strings.TrimSpace(scanner.Text()) {
		case "-- +goose Up":
			if up || down {
				return fmt.Errorf("%s:%d: unexpected \"-- +goose Up\"", name, line)
			}
			up = true
		case "-- +goose Down":
			if !up || down || inStatement {
				return fmt.Errorf("%s:%d: \"-- +goose Down\" must follow a closed Up section", name, line)
			}
			down = true
		case "-- +goose StatementBegin":
			if inStatement {
				return fmt.Errorf("%s:%d: nested StatementBegin", name, line)
			}
			inStatement = true
		case "-- +goose StatementEnd":
			if !inStatement {
				return fmt.Errorf("%s:%d: StatementEnd without StatementBegin", name, line)
			}
			inStatement = false
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %q: %w", name, err)
	}
	switch {
	case !up:
		return fmt.Errorf("migration %q missing \"-- +goose Up\"", name)
	case !down:
		return fmt.Errorf("migration %q missing \"-- +goose Down\"", name)
	case inStatement:
		return fmt.Errorf("migration %q has an unterminated StatementBegin", name)
	}
	return nil
}
