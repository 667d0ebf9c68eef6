// Package seginfo provides utilities for managing sequential, immutable
// numbered file sets in a file-based storage system. It names and
// discovers the transaction-log segment files (`txlog_NNNNN_ts.log`) and
// names the on-disk chunk directories (`P.N` in spec §6), which append a
// short random suffix to the generated name.
//
// Filename Format: prefix_NNNNN_timestamp.ext
//
// Where:
//   - prefix: A configurable string identifying the file type (e.g., "chunk", "txlog").
//   - NNNNN: A zero-padded 5-digit sequence number (00001, 00002, etc.).
//   - timestamp: A nanosecond-precision Unix timestamp for uniqueness and traceability.
//   - ext: A caller-supplied extension.
//
// Example filenames:
//
//	chunk_00001_1678881234567890.meta
//	txlog_00042_1678881298765432.log
package seginfo

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ignitedb/ignite/pkg/filesys"
)

// GetLatestSegmentInfo discovers and analyzes the most recent numbered file in
// the specified directory. It performs a comprehensive search, identifies the
// file with the highest sequence number, and returns detailed information
// about that file.
//
// Returns:
//   - uint64: The sequence ID of the latest entry (1 if none exist).
//   - os.FileInfo: File metadata for the latest entry (nil if none exist).
//   - error: Detailed error information if any operation fails.
func GetLatestSegmentInfo(dataDir, subDir, prefix, ext string) (uint64, os.FileInfo, error) {
	if dataDir == "" || subDir == "" || prefix == "" {
		return 0, nil, fmt.Errorf("all parameters (dataDir, subDir, prefix) must be non-empty")
	}

	// Discover the most recent file.
	lastPath, err := GetLastSegmentName(dataDir, subDir, prefix, ext)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to discover latest entry: %w", err)
	}

	// Handle the bootstrap case: nothing exists yet.
	if lastPath == "" {
		return 1, nil, nil
	}

	// Extract and parse the sequence ID from the filename.
	id, err := ParseSegmentID(lastPath, prefix)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to parse id from %s: %w", lastPath, err)
	}

	// Retrieve file system metadata.
	fileInfo, err := GetFileInfo(lastPath)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to retrieve file info for %s: %w", lastPath, err)
	}

	return id, fileInfo, nil
}

// GetLastSegmentName searches the directory and identifies the file with the
// highest sequence ID. This function implements a lexicographic sorting
// strategy that works because filenames use zero-padded IDs and
// monotonically increasing timestamps.
//
// Returns:
//   - string: Full path to the file with the highest ID (empty if none found).
//   - error: Detailed error if directory reading fails.
func GetLastSegmentName(dataDir, subDir, prefix, ext string) (string, error) {
	if dataDir == "" || subDir == "" || prefix == "" {
		return "", fmt.Errorf("all parameters (dataDir, subDir, prefix) must be non-empty")
	}

	// Construct the search pattern, e.g. "/var/data/chunks/chunk_*.meta".
	searchPattern := filepath.Join(dataDir, subDir, prefix+"*"+ext)

	// Safely read all matching files using our filesystem utility.
	matchingFiles, err := filesys.ReadDir(searchPattern)
	if err != nil {
		return "", fmt.Errorf("failed to read directory with pattern %s: %w", searchPattern, err)
	}

	// Handle the case where nothing exists yet.
	if len(matchingFiles) == 0 {
		return "", nil
	}

	// Sort files lexicographically. This works correctly because:
	// 1. IDs are zero-padded (00001, 00002, etc.).
	// 2. Timestamps are monotonically increasing.
	// 3. The filename format ensures proper sorting: prefix_ID_timestamp.ext.
	slices.Sort(matchingFiles)

	// Return the file with the highest ID (last in sorted order).
	return matchingFiles[len(matchingFiles)-1], nil
}

// FindAllIDs returns every distinct sequence ID present in subDir for the
// given prefix, sorted ascending. Used by the transaction log to discover
// which of its segment files exist.
func FindAllIDs(dataDir, subDir, prefix, ext string) ([]uint64, error) {
	searchPattern := filepath.Join(dataDir, subDir, prefix+"*"+ext)
	matchingFiles, err := filesys.ReadDir(searchPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory with pattern %s: %w", searchPattern, err)
	}

	seen := make(map[uint64]struct{}, len(matchingFiles))
	ids := make([]uint64, 0, len(matchingFiles))
	for _, f := range matchingFiles {
		id, err := ParseSegmentID(f, prefix)
		if err != nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	slices.Sort(ids)
	return ids, nil
}

// GenerateName creates a properly formatted filename for a new numbered file.
func GenerateName(id uint64, prefix, ext string) string {
	// Return a recognizable error pattern rather than failing silently.
	if prefix == "" {
		return fmt.Sprintf("INVALID_PREFIX_%05d_%d%s", id, time.Now().UnixNano(), ext)
	}

	// Generate timestamp with nanosecond precision for maximum uniqueness.
	timestamp := time.Now().UnixNano()

	// Format: prefix_NNNNN_timestamp.ext.
	// %05d ensures zero-padding (00001, 00002, etc.) for proper lexicographic sorting.
	return fmt.Sprintf("%s_%05d_%d%s", prefix, id, timestamp, ext)
}

// ParseSegmentID extracts the sequence ID from a numbered filename.
func ParseSegmentID(fullPath, prefix string) (uint64, error) {
	// Extract just the filename from the full path.
	_, filename := filepath.Split(fullPath)

	// Validate that the filename starts with our expected prefix.
	if !strings.HasPrefix(filename, prefix) {
		return 0, fmt.Errorf("filename %s does not start with expected prefix %s", filename, prefix)
	}

	// Remove the prefix and file extension to get the core components.
	// Example: "chunk_00001_1678881234567890.meta" -> "00001_1678881234567890"
	withoutPrefix := strings.TrimPrefix(filename, prefix)
	withoutExtension := strings.Split(withoutPrefix, ".")[0]

	// Split by underscores to separate ID and timestamp.
	// Example: "00001_1678881234567890" -> ["", "00001", "1678881234567890"]
	parts := strings.Split(withoutExtension, "_")

	// Validate that we have the expected number of parts.
	// We expect: ["", "ID", "timestamp"] (empty first element due to leading underscore).
	if len(parts) < 3 {
		return 0, fmt.Errorf("filename %s has unexpected format, expected prefix_ID_timestamp.ext", filename)
	}

	// Parse the ID component (second element after splitting).
	idStr := parts[1]
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse id '%s' as integer: %w", idStr, err)
	}

	return id, nil
}

// GetFileInfo safely retrieves file system metadata for a given path.
// This helper function encapsulates the file opening and stat operations,
// providing consistent error handling and resource cleanup.
func GetFileInfo(filePath string) (os.FileInfo, error) {
	// Open the file in read-only mode.
	file, err := os.OpenFile(filePath, os.O_RDONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}

	// Ensure the file is closed even if Stat() fails.
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filePath, closeErr)
		}
	}()

	// Retrieve file metadata.
	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info for %s: %w", filePath, err)
	}

	return stat, nil
}
