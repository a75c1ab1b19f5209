package target

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// readProcComm read /proc/pid/comm or /proc/pid/stat to load the command name of process.
func readProcComm(pid int) (string, error) {
	comm, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err == nil {
		// removes newline character
		comm = bytes.TrimSuffix(comm, []byte("\n"))
	}

	if len(comm) == 0 {
		stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
		if err != nil {
			return "", fmt.Errorf("could not read proc stat: %v", err)
		}
		match := statCommRegexp(pid).FindSubmatch(stat)
		if match == nil {
			return "", fmt.Errorf("no command name found in /proc/%d/stat", pid)
		}
		comm = match[1]
	}
	return string(comm), nil
}

func statCommRegexp(pid int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`^%d\s*\((.*)\)`, pid))
}

// readProcCommArgs read /proc/pid/cmdline to load the command arguments of process
func readProcCommArgs(pid int) ([]string, error) {
	dat, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return nil, err
	}
	dat = bytes.TrimSuffix(dat, []byte{0})
	if len(dat) == 0 {
		return nil, nil
	}
	return strings.Split(string(dat), string([]byte{0}))[1:], nil
}

// Process statuses
const (
	statusSleeping  = 'S'
	statusRunning   = 'R'
	statusTraceStop = 't'
	statusZombie    = 'Z'

	// Kernel 2.6 has TraceStop as T
	statusTraceStopT = 'T'
)

// procState reads the state letter of pid from /proc/pid/stat, 0 when it
// cannot be read.
func procState(pid int) rune {
	f, err := os.Open(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && line == "" {
		return 0
	}

	// The second field is the task name in parenthesis. Both parenthesis and
	// spaces can appear inside the name without escaping, so the state is
	// the first field after the last ')'.
	idx := strings.LastIndexByte(line, ')')
	if idx < 0 {
		return 0
	}
	fields := strings.Fields(line[idx+1:])
	if len(fields) == 0 || len(fields[0]) == 0 {
		return 0
	}
	return rune(fields[0][0])
}

// StateString describes a /proc state letter.
func StateString(state rune) string {
	switch state {
	case statusSleeping:
		return "sleeping"
	case statusRunning:
		return "running"
	case statusTraceStop, statusTraceStopT:
		return "trace-stopped"
	case statusZombie:
		return "zombie"
	case 0:
		return "unknown"
	default:
		return string(state)
	}
}
