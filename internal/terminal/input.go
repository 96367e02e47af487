package terminal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

// ReadLine reads a line of input from the user
func ReadLine() (string, error) {
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// ReadPassword reads a line without echoing it
func ReadPassword() (string, error) {
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// FindPDFFiles searches under workingDir for PDF files matching the partial
// path, for completing /upload arguments. Hidden directories are skipped and
// the walk is depth-limited.
func FindPDFFiles(workingDir string, partial string) []string {
	matches := []string{}

	searchDir := workingDir
	pattern := strings.ToLower(partial)

	if strings.Contains(partial, "/") {
		dir, file := filepath.Split(partial)
		searchDir = filepath.Join(workingDir, dir)
		pattern = strings.ToLower(file)
	}

	err := filepath.Walk(searchDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		relPath, err := filepath.Rel(workingDir, path)
		if err != nil {
			return nil
		}
		if relPath == "." {
			return nil
		}

		if strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.IsDir() {
			if !strings.HasSuffix(strings.ToLower(info.Name()), ".pdf") {
				return nil
			}
			relPathLower := strings.ToLower(relPath)
			isMatch := partial == "" ||
				strings.HasPrefix(relPathLower, pattern) ||
				strings.Contains(relPathLower, pattern)
			if isMatch && len(matches) < 100 {
				matches = append(matches, relPath)
			}
		}

		depth := strings.Count(relPath, string(filepath.Separator))
		if depth > 4 {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return matches
	}
	return matches
}
