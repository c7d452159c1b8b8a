package rtool

import (
	"encoding/base64"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// embeddedFS is the in-process filesystem tool server spec.md §4.4
// describes: every path argument is normalized server-side against Root
// before touching the filesystem, so a client can never escape it.
type embeddedFS struct {
	Root string
}

func newEmbeddedFS(root string) *embeddedFS {
	return &embeddedFS{Root: root}
}

// normalize maps a client-supplied path to (absolute filesystem path,
// root-relative forward-slash display path). "/", "", and "." all mean
// root; a leading "/" is stripped; ".." segments that would escape the
// root are clamped back to it.
func (e *embeddedFS) normalize(input string) (abs string, display string, err error) {
	clean := strings.TrimSpace(input)
	if clean == "" || clean == "/" || clean == "." {
		return e.Root, "", nil
	}
	clean = strings.TrimPrefix(clean, "/")
	clean = path.Clean(clean)
	clean = strings.TrimPrefix(clean, "/")
	if clean == "." || clean == "" {
		return e.Root, "", nil
	}

	abs = filepath.Join(e.Root, filepath.FromSlash(clean))
	rootAbs, err := filepath.Abs(e.Root)
	if err != nil {
		return "", "", fmt.Errorf("rtool: resolve root: %w", err)
	}
	targetAbs, err := filepath.Abs(abs)
	if err != nil {
		return "", "", fmt.Errorf("rtool: resolve path: %w", err)
	}
	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		// escapes the root: clamp to root rather than error, per spec
		return rootAbs, "", nil
	}
	return targetAbs, filepath.ToSlash(rel), nil
}

func (e *embeddedFS) declarations() []ToolDecl {
	return []ToolDecl{
		{Name: "list_directory", Description: "List entries in a directory under the server root."},
		{Name: "get_file_info", Description: "Stat a file or directory under the server root."},
		{Name: "search_files", Description: "Find files under a directory whose name matches a glob pattern."},
		{Name: "read_file", Description: "Read a file's contents, text if UTF-8-decodable else base64."},
	}
}

func (e *embeddedFS) callTool(name string, args map[string]any) (any, error) {
	switch name {
	case "list_directory":
		return e.listDirectory(stringArg(args, "path"))
	case "get_file_info":
		return e.getFileInfo(stringArg(args, "path"))
	case "search_files":
		return e.searchFiles(stringArg(args, "path"), stringArg(args, "pattern"))
	case "read_file":
		return e.readFile(stringArg(args, "path"), intArg(args, "max_bytes"))
	default:
		return nil, fmt.Errorf("Unsupported: unknown embedded tool %q", name)
	}
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func (e *embeddedFS) listDirectory(reqPath string) (any, error) {
	abs, display, err := e.normalize(reqPath)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("Generic: list_directory: %w", err)
	}
	out := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		var size int64
		if err == nil {
			size = info.Size()
		}
		out = append(out, map[string]any{
			"name":  entry.Name(),
			"path":  joinDisplay(display, entry.Name()),
			"is_dir": entry.IsDir(),
			"size":  size,
		})
	}
	return map[string]any{"path": display, "entries": out}, nil
}

func (e *embeddedFS) getFileInfo(reqPath string) (any, error) {
	abs, display, err := e.normalize(reqPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("Generic: get_file_info: %w", err)
	}
	return map[string]any{
		"path":     display,
		"size":     info.Size(),
		"is_dir":   info.IsDir(),
		"mod_time": info.ModTime().UTC().Format(time.RFC3339),
	}, nil
}

func (e *embeddedFS) searchFiles(reqPath, pattern string) (any, error) {
	abs, display, err := e.normalize(reqPath)
	if err != nil {
		return nil, err
	}
	if pattern == "" {
		pattern = "*"
	}
	var matches []string
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		ok, matchErr := filepath.Match(pattern, d.Name())
		if matchErr == nil && ok {
			rel, relErr := filepath.Rel(e.Root, p)
			if relErr == nil {
				matches = append(matches, filepath.ToSlash(rel))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Generic: search_files: %w", err)
	}
	return map[string]any{"path": display, "matches": matches}, nil
}

const defaultMaxReadBytes = 200_000

func (e *embeddedFS) readFile(reqPath string, maxBytes int) (any, error) {
	abs, display, err := e.normalize(reqPath)
	if err != nil {
		return nil, err
	}
	limit := maxBytes
	if limit <= 0 || limit > defaultMaxReadBytes {
		limit = defaultMaxReadBytes
	}

	file, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("Generic: read_file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("Generic: read_file: %w", err)
	}

	buf, err := io.ReadAll(io.LimitReader(file, int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("Generic: read_file: %w", err)
	}
	truncated := info.Size() > int64(len(buf))

	if utf8.Valid(buf) {
		return map[string]any{
			"path":      display,
			"content":   string(buf),
			"encoding":  "text",
			"truncated": truncated,
		}, nil
	}
	return map[string]any{
		"path":      display,
		"content":   base64.StdEncoding.EncodeToString(buf),
		"encoding":  "base64",
		"truncated": truncated,
	}, nil
}

func joinDisplay(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
