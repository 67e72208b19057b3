package flags

import "strings"

const pathSeparator = "."

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	segments := strings.Split(path, pathSeparator)
	for _, segment := range segments {
		if segment == "" {
			return nil, ErrInvalidPath
		}
	}
	return segments, nil
}

func joinPath(prefix, name string) string {
	switch {
	case prefix == "":
		return name
	case name == "":
		return prefix
	default:
		return prefix + pathSeparator + name
	}
}

// parentPath splits "A.B.c" into "A.B" and "c".
func parentPath(path string) (string, string) {
	idx := strings.LastIndex(path, pathSeparator)
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}
