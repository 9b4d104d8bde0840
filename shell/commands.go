package shell

import (
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/ojas-mohbansi/my-own-os/fs"
	"github.com/ojas-mohbansi/my-own-os/mem"
	"github.com/ojas-mohbansi/my-own-os/sched"
	"github.com/ojas-mohbansi/my-own-os/security"
)

type command struct {
	name string
	run  func(s *Shell, args []string)
	help string
}

var commands []command

func init() {
	commands = []command{
		{"help", cmdHelp, "Display available commands"},
		{"exit", cmdExit, "Exit the shell"},
		{"clear", cmdClear, "Clear the screen"},
		{"echo", cmdEcho, "Display text on screen"},
		{"login", cmdLogin, "Authenticate as a user: login <name> <password>"},
		{"logout", cmdLogout, "Log out the current user"},
		{"whoami", cmdWhoami, "Show the current user"},
		{"users", cmdUsers, "List provisioned users"},
		{"useradd", cmdUseradd, "Create a user: useradd <name> <password> <guest|user|admin>"},
		{"ls", cmdLs, "List the current directory"},
		{"create", cmdCreate, "Create an empty file: create <name>"},
		{"mkdir", cmdMkdir, "Create a directory: mkdir <name>"},
		{"write", cmdWrite, "Write text to a file: write <name> <text>"},
		{"cat", cmdCat, "Print a file: cat <name>"},
		{"rm", cmdRm, "Delete a file or empty directory: rm <name>"},
		{"cd", cmdCd, "Change directory: cd <name|/>"},
		{"alloc", cmdAlloc, "Allocate one page of memory"},
		{"free", cmdFree, "Free an allocated page: free <hex-address>"},
		{"meminfo", cmdMeminfo, "Show memory statistics"},
		{"spawn", cmdSpawn, "Spawn worker threads: spawn <count> <slices>"},
		{"run", cmdRun, "Drive the scheduler until all threads finish"},
		{"threads", cmdThreads, "Show thread table and CPU loads"},
		{"secstat", cmdSecstat, "Show security counters"},
		{"audit", cmdAudit, "Show the audit trail"},
		{"dump", cmdDump, "Dump kernel state (admin only)"},
		{"panic", cmdPanic, "Trigger a kernel panic (for testing)"},
	}
}

func cmdHelp(s *Shell, args []string) {
	s.printf("Available commands:\n")
	for _, c := range commands {
		s.printf("  %-8s - %s\n", c.name, c.help)
	}
}

func cmdExit(s *Shell, args []string) {
	user := s.k.Security.CurrentUser()
	if user != nil {
		s.k.Security.Logout(user)
	}

	s.printf("Goodbye\n")
	s.done = true
}

func cmdClear(s *Shell, args []string) {
	s.k.Console.Clear()
	s.printf("\033[2J\033[H")
}

func cmdEcho(s *Shell, args []string) {
	line := strings.Join(args, " ")
	s.printf("%s\n", line)
	s.k.Console.WriteString(line + "\n")
}

func cmdLogin(s *Shell, args []string) {
	if len(args) != 2 {
		s.printf("Usage: login <name> <password>\n")
		return
	}

	user, err := s.k.Security.Authenticate(args[0], args[1])
	if err != nil {
		s.printf("Authentication failed\n")
		return
	}

	s.printf("Logged in as %s (%s)\n", user.Name, user.Privilege)
}

func cmdLogout(s *Shell, args []string) {
	user := s.k.Security.CurrentUser()
	if user == nil {
		s.printf("Nobody is logged in\n")
		return
	}

	s.k.Security.Logout(user)
	s.printf("Logged out\n")
}

func cmdWhoami(s *Shell, args []string) {
	user := s.k.Security.CurrentUser()
	if user == nil {
		s.printf("Nobody is logged in\n")
		return
	}

	s.printf("%s (%s)\n", user.Name, user.Privilege)
}

func cmdUsers(s *Shell, args []string) {
	for _, u := range s.k.Security.Users() {
		active := " "
		if u.SessionID != 0 {
			active = "*"
		}
		s.printf("%s %-16s %s\n", active, u.Name, u.Privilege)
	}
}

func cmdUseradd(s *Shell, args []string) {
	if len(args) != 3 {
		s.printf("Usage: useradd <name> <password> <guest|user|admin>\n")
		return
	}

	if !s.requirePrivilege(security.PrivilegeAdmin) {
		return
	}

	var level security.PrivilegeLevel
	switch args[2] {
	case "guest":
		level = security.PrivilegeGuest
	case "user":
		level = security.PrivilegeUser
	case "admin":
		level = security.PrivilegeAdmin
	default:
		s.printf("Unknown privilege level: %s\n", args[2])
		return
	}

	if _, err := s.k.Security.CreateUser(args[0], args[1], level); err != nil {
		s.reportError("useradd", err)
		return
	}

	s.printf("User %s created\n", args[0])
}

func (s *Shell) requirePrivilege(level security.PrivilegeLevel) bool {
	user := s.k.Security.CurrentUser()
	if !s.k.Security.CheckPermission(user, level) {
		s.k.Security.ReportViolation("PERMISSION_DENIED", "insufficient privilege for shell command", user)
		s.printf("Permission denied\n")
		return false
	}

	return true
}

func (s *Shell) reportError(op string, err error) {
	s.k.HandleError(op, err)
	s.printf("Error: %v\n", err)
}

func (s *Shell) lookup(name string) (int, bool) {
	if !security.ValidFilename(name) {
		s.printf("Error: invalid file name\n")
		return -1, false
	}

	index, err := s.k.FS.Find(name, s.cwd)
	if err != nil {
		s.reportError("find", err)
		return -1, false
	}

	return index, true
}

func cmdLs(s *Shell, args []string) {
	entries, err := s.k.FS.List(s.cwd)
	if err != nil {
		s.reportError("ls", err)
		return
	}

	for _, e := range entries {
		if e.Type == fs.TypeDirectory {
			s.printf("%-32s <dir>\n", e.Name)
		} else {
			s.printf("%-32s %d bytes\n", e.Name, e.Size)
		}
	}
}

func cmdCreate(s *Shell, args []string) {
	if len(args) != 1 {
		s.printf("Usage: create <name>\n")
		return
	}

	if !security.ValidFilename(args[0]) {
		s.k.Security.ReportViolation("INVALID_FILENAME", args[0], s.k.Security.CurrentUser())
		s.printf("Error: invalid file name\n")
		return
	}

	if _, err := s.k.FS.CreateFile(args[0], s.cwd); err != nil {
		s.reportError("create", err)
		return
	}

	s.printf("Created %s\n", args[0])
}

func cmdMkdir(s *Shell, args []string) {
	if len(args) != 1 {
		s.printf("Usage: mkdir <name>\n")
		return
	}

	if !security.ValidFilename(args[0]) {
		s.k.Security.ReportViolation("INVALID_FILENAME", args[0], s.k.Security.CurrentUser())
		s.printf("Error: invalid file name\n")
		return
	}

	if _, err := s.k.FS.Mkdir(args[0], s.cwd); err != nil {
		s.reportError("mkdir", err)
		return
	}

	s.printf("Created directory %s\n", args[0])
}

func cmdWrite(s *Shell, args []string) {
	if len(args) < 2 {
		s.printf("Usage: write <name> <text>\n")
		return
	}

	index, ok := s.lookup(args[0])
	if !ok {
		return
	}

	text := strings.Join(args[1:], " ")

	n, err := s.k.FS.Write(index, []byte(text), 0)
	if err != nil {
		s.reportError("write", err)
		return
	}

	s.printf("Wrote %d bytes\n", n)
}

func cmdCat(s *Shell, args []string) {
	if len(args) != 1 {
		s.printf("Usage: cat <name>\n")
		return
	}

	index, ok := s.lookup(args[0])
	if !ok {
		return
	}

	info, err := s.k.FS.Stat(index)
	if err != nil {
		s.reportError("cat", err)
		return
	}

	buf := make([]byte, info.Size)

	if _, err := s.k.FS.Read(index, buf, 0); err != nil {
		s.reportError("cat", err)
		return
	}

	s.printf("%s\n", buf)
}

func cmdRm(s *Shell, args []string) {
	if len(args) != 1 {
		s.printf("Usage: rm <name>\n")
		return
	}

	index, ok := s.lookup(args[0])
	if !ok {
		return
	}

	if err := s.k.FS.Delete(index); err != nil {
		s.reportError("rm", err)
		return
	}

	s.printf("Deleted %s\n", args[0])
}

func cmdCd(s *Shell, args []string) {
	if len(args) != 1 {
		s.printf("Usage: cd <name|/>\n")
		return
	}

	if args[0] == "/" {
		s.cwd = fs.RootDir
		return
	}

	index, ok := s.lookup(args[0])
	if !ok {
		return
	}

	info, err := s.k.FS.Stat(index)
	if err != nil {
		s.reportError("cd", err)
		return
	}

	if info.Type != fs.TypeDirectory {
		s.printf("Error: not a directory\n")
		return
	}

	s.cwd = index
}

func cmdAlloc(s *Shell, args []string) {
	addr, err := s.k.Mem.Allocate(mem.PageSize)
	if err != nil {
		s.reportError("alloc", err)
		return
	}

	s.printf("Allocated page at 0x%X\n", uint32(addr))
}

func cmdFree(s *Shell, args []string) {
	if len(args) != 1 {
		s.printf("Usage: free <hex-address>\n")
		return
	}

	val, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 32)
	if err != nil {
		s.printf("Error: bad address\n")
		return
	}

	if err := s.k.Mem.Free(mem.Addr(val)); err != nil {
		s.reportError("free", err)
		return
	}

	s.printf("Freed page at 0x%X\n", val)
}

func cmdMeminfo(s *Shell, args []string) {
	stats := s.k.Mem.Stats()

	s.printf("frames total:  %d\n", stats.TotalFrames)
	s.printf("frames free:   %d\n", stats.FreeFrames)
	s.printf("frames kernel: %d\n", stats.KernelFrames)
	s.printf("regions:       %d\n", stats.Regions)
}

func cmdSpawn(s *Shell, args []string) {
	if len(args) != 2 {
		s.printf("Usage: spawn <count> <slices>\n")
		return
	}

	count, err1 := strconv.Atoi(args[0])
	slices, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil || count < 1 || slices < 1 {
		s.printf("Error: bad arguments\n")
		return
	}

	sc := s.k.Sched

	for i := 0; i < count; i++ {
		remaining := slices

		_, err := sc.Create(func(arg interface{}) {
			remaining--
			if remaining <= 0 {
				sc.CompleteCurrent()
			}
		}, nil, 0)
		if err != nil {
			s.reportError("spawn", err)
			return
		}
	}

	s.printf("Spawned %d threads of %d slices each\n", count, slices)
}

func cmdRun(s *Shell, args []string) {
	sc := s.k.Sched

	cycles := 0
	for sc.ThreadCount() > 0 {
		if !sc.Schedule() {
			break
		}

		cycles++
		if cycles%4 == 0 {
			sc.LoadBalance()
		}
	}

	if left := sc.ThreadCount(); left > 0 {
		s.printf("Scheduler stalled after %d slices, %d threads not runnable\n", cycles, left)
		return
	}

	s.printf("Scheduler drained after %d slices\n", cycles)
}

func cmdThreads(s *Shell, args []string) {
	sc := s.k.Sched

	for _, t := range sc.Threads() {
		s.printf("thread %2d cpu=%d state=%-8s ticks=%d\n", int(t.ID), int(t.CPU), t.State, t.Ticks)
	}

	for cpu := 0; cpu < sc.CPUs(); cpu++ {
		s.printf("cpu %d load=%d\n", cpu, sc.CPULoad(sched.CPUID(cpu)))
	}
}

func cmdSecstat(s *Shell, args []string) {
	s.printf("events logged: %d\n", s.k.Security.EventsLogged())
	s.printf("violations:    %d\n", s.k.Security.Violations())
}

func cmdAudit(s *Shell, args []string) {
	for _, e := range s.k.Security.AuditTrail() {
		name := "-"
		if e.User != nil {
			name = e.User.Name
		}
		s.printf("%4d %-24s %-16s %s\n", e.Timestamp, e.Category, name, e.Detail)
	}
}

func cmdDump(s *Shell, args []string) {
	if !s.requirePrivilege(security.PrivilegeAdmin) {
		return
	}

	s.printf("%s", spew.Sdump(s.k.Stats()))
}

func cmdPanic(s *Shell, args []string) {
	if !s.requirePrivilege(security.PrivilegeAdmin) {
		return
	}

	s.k.Panic("user requested panic")
}
