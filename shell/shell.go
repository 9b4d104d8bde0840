package shell

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ojas-mohbansi/my-own-os/fs"
	"github.com/ojas-mohbansi/my-own-os/kernel"
	"github.com/ojas-mohbansi/my-own-os/log"
	"github.com/ojas-mohbansi/my-own-os/security"
)

const (
	Prompt          = "s00k> "
	MaxInputLength  = 256
	maxAuthAttempts = 3
)

// Shell is the interactive surface over the kernel. Input is validated
// and sanitized before any command runs; offending input is reported
// to the security audit log, never executed.
type Shell struct {
	k   *kernel.Kernel
	in  *bufio.Scanner
	out io.Writer

	// cwd is the file table index of the current directory.
	cwd  int
	done bool
}

func New(k *kernel.Kernel, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		k:   k,
		in:  bufio.NewScanner(in),
		out: out,
		cwd: fs.RootDir,
	}
}

func (s *Shell) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) readLine() (string, bool) {
	if !s.in.Scan() {
		return "", false
	}

	return s.in.Text(), true
}

// Run prints the banner, authenticates the operator and enters the
// command loop. It returns when the input ends or the exit command
// runs.
func (s *Shell) Run() error {
	s.banner()

	if !s.authenticate() {
		s.printf("Maximum authentication attempts exceeded. Access denied.\n")
		s.k.Security.ReportViolation("MAX_AUTH_ATTEMPTS_EXCEEDED", "too many failed login attempts", nil)
		return security.ErrAuthFailed
	}

	for !s.done {
		user := s.k.Security.CurrentUser()
		if user != nil {
			s.printf("%s@%s", user.Name, Prompt)
		} else {
			s.printf("%s", Prompt)
		}

		line, ok := s.readLine()
		if !ok {
			break
		}

		s.Execute(line)
	}

	return s.in.Err()
}

func (s *Shell) banner() {
	s.printf("\ns00k Shell - Secure Edition\n")
	s.printf("=====================================\n")
	s.printf("Security features enabled:\n")
	s.printf("- Input validation\n")
	s.printf("- Command injection protection\n")
	s.printf("- User authentication required\n")
	s.printf("- Memory protection\n")
	s.printf("Type 'help' for available commands\n\n")
}

func (s *Shell) authenticate() bool {
	for attempt := 0; attempt < maxAuthAttempts; attempt++ {
		s.printf("Please authenticate to access the system\n")

		s.printf("Username: ")
		username, ok := s.readLine()
		if !ok {
			return false
		}

		s.printf("Password: ")
		password, ok := s.readLine()
		if !ok {
			return false
		}

		if _, err := s.k.Security.Authenticate(username, password); err == nil {
			s.printf("Authentication successful. Welcome to the system!\n")
			return true
		}

		s.printf("Authentication failed. Attempts remaining: %d\n", maxAuthAttempts-attempt-1)
	}

	return false
}

// Execute validates, sanitizes and dispatches one command line.
func (s *Shell) Execute(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if !validInput(line) {
		s.k.Security.ReportViolation("INVALID_CHARACTER", "non-printable character in shell input", s.k.Security.CurrentUser())
		s.printf("Error: invalid input\n")
		return
	}

	if hasInjection(line) {
		s.k.Security.ReportViolation("SUSPICIOUS_PATTERN", "potential command injection detected", s.k.Security.CurrentUser())
		s.printf("Error: invalid input\n")
		return
	}

	line = sanitize(line)
	if line == "" {
		s.printf("Error: invalid input\n")
		return
	}

	args := strings.Fields(line)
	name := args[0]

	for _, cmd := range commands {
		if cmd.name == name {
			cmd.run(s, args[1:])
			return
		}
	}

	s.k.Security.LogEvent("UNKNOWN_COMMAND", name, s.k.Security.CurrentUser())
	s.printf("Unknown command: %s\n", name)
	log.L.Debug("shell-unknown-command", "name", name)
}

// validInput accepts printable ASCII up to the input limit.
func validInput(line string) bool {
	if len(line) > MaxInputLength {
		return false
	}

	return security.ValidInput(line, MaxInputLength)
}

var injectionPatterns = []string{";", "|", "&&", "||", "`", "$(", "<", ">", "&"}

func hasInjection(line string) bool {
	for _, p := range injectionPatterns {
		if strings.Contains(line, p) {
			return true
		}
	}

	return false
}

// sanitize keeps only safe characters; everything else is dropped
// silently. A trailing newline ends the command.
func sanitize(line string) string {
	var b strings.Builder

	for i := 0; i < len(line); i++ {
		c := line[i]

		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == ' ' || c == '-' || c == '_' || c == '.' || c == '/':
			b.WriteByte(c)
		case c == '\n' || c == '\r':
			return b.String()
		}
	}

	return b.String()
}
