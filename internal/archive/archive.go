// Package archive opens the downloaded ZIP container, locates the target
// delimited member, and materializes it to a temporary file for streaming.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoCSVMembers reports an archive without any member carrying the expected
// tabular-file suffix.
var ErrNoCSVMembers = errors.New("no CSV members found in archive")

// CSVSuffix is the member suffix recognized as a delimited table.
const CSVSuffix = ".csv"

// ListMembers returns, in archive order, the names of members ending in
// CSVSuffix. An archive without any such member yields ErrNoCSVMembers.
func ListMembers(zipPath string) ([]string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, CSVSuffix) {
			names = append(names, f.Name)
		}
	}
	if len(names) == 0 {
		return nil, ErrNoCSVMembers
	}
	return names, nil
}

// SelectMember picks the target member from names. With an empty substring the
// first member wins; otherwise the first member whose name contains substring
// is chosen, and absence is an error listing the available members.
func SelectMember(names []string, substring string) (string, error) {
	if len(names) == 0 {
		return "", ErrNoCSVMembers
	}
	if substring == "" {
		return names[0], nil
	}
	for _, n := range names {
		if strings.Contains(n, substring) {
			return n, nil
		}
	}
	return "", fmt.Errorf("no member matching %q in archive (available: %s)",
		substring, strings.Join(names, ", "))
}

// ExtractMember copies member byte-for-byte into a freshly created temporary
// file and returns its path. The caller owns eventual deletion.
func ExtractMember(zipPath, member string) (string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	src, err := zr.Open(member)
	if err != nil {
		return "", fmt.Errorf("open member %q: %w", member, err)
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "lobbyetl-*.csv")
	if err != nil {
		return "", fmt.Errorf("create temp csv: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("extract member %q: %w", member, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("close temp csv: %w", err)
	}
	return dst.Name(), nil
}
