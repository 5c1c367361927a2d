// Package patternfile reads the desired pattern list, one expression per line.
package patternfile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

type File struct {
	path string
}

func New(path string) *File {
	return &File{path: path}
}

// Desired returns the expressions in file order. Blank lines are ignored
// and repeated expressions are reported once.
func (f *File) Desired(_ context.Context) ([]string, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open pattern list: %w", err)
	}
	defer file.Close()

	lines, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("read pattern list %s: %w", f.path, err)
	}
	return lines, nil
}

func Parse(r io.Reader) ([]string, error) {
	var lines []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || seen[line] {
			continue
		}
		seen[line] = true
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
