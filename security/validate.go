package security

const (
	MaxInputLength   = 256
	MaxFilenameInput = 32
	MaxPathLength    = 128
	MaxCommandLength = 64
)

// ValidInput accepts printable ASCII plus tab, newline and carriage
// return, up to max bytes.
func ValidInput(input string, max int) bool {
	if len(input) > max {
		return false
	}

	for i := 0; i < len(input); i++ {
		c := input[i]
		if c >= 32 && c <= 126 {
			continue
		}

		if c != '\n' && c != '\r' && c != '\t' {
			return false
		}
	}

	return true
}

// ValidFilename accepts non-empty names of alphanumerics, dot,
// underscore and hyphen.
func ValidFilename(name string) bool {
	if name == "" || len(name) >= MaxFilenameInput {
		return false
	}

	for i := 0; i < len(name); i++ {
		if !filenameChar(name[i]) {
			return false
		}
	}

	return true
}

// ValidPath is ValidFilename plus the path separator.
func ValidPath(path string) bool {
	if path == "" || len(path) >= MaxPathLength {
		return false
	}

	for i := 0; i < len(path); i++ {
		if !filenameChar(path[i]) && path[i] != '/' {
			return false
		}
	}

	return true
}

// ValidCommand accepts non-empty commands of alphanumerics, space,
// hyphen and underscore.
func ValidCommand(command string) bool {
	if command == "" || len(command) >= MaxCommandLength {
		return false
	}

	for i := 0; i < len(command); i++ {
		c := command[i]
		if alnum(c) || c == ' ' || c == '-' || c == '_' {
			continue
		}

		return false
	}

	return true
}

func alnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func filenameChar(c byte) bool {
	return alnum(c) || c == '.' || c == '_' || c == '-'
}
