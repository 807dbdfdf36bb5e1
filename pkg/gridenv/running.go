package gridenv

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ppid returns the parent process id of the specified process id by
// reading /proc. Returns 0 in case of any kind of difficulty.
func ppid(pid int) int {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "status"))
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "PPid:") {
			words := strings.Fields(line)
			if len(words) >= 2 {
				if n, err := strconv.Atoi(words[1]); err == nil {
					return n
				}
			}
		}
	}
	return 0
}

// CheckRunning reports whether there is a running batch submission
// process on this node with the specified xml file and stage. Each
// process in /proc is checked for the following properties:
//
//  1. Owned by the same uid as this process.
//  2. Command line:
//     a) ends in the submission command name,
//     b) matching --xml option (exact match),
//     c) matching --stage option (exact match),
//     d) --submit or --makeup option.
//
// Our own ancestor processes are ignored.
func CheckRunning(command, xmlName, stageName string) bool {

	// Find all ancestor processes, which we will ignore.
	ignore := make(map[int]struct{})
	for pid := os.Getpid(); pid > 1; pid = ppid(pid) {
		ignore[pid] = struct{}{}
	}

	entries, err := os.ReadDir("/proc")
	if err != nil {
		return false
	}
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		if _, ok := ignore[pid]; ok {
			continue
		}
		fi, err := os.Stat(filepath.Join("/proc", entry.Name()))
		if err != nil {
			continue
		}
		st, ok := fi.Sys().(*syscall.Stat_t)
		if !ok || st.Uid != uint32(os.Getuid()) {
			continue
		}
		cmdline, err := os.ReadFile(filepath.Join("/proc", entry.Name(), "cmdline"))
		if err != nil {
			continue
		}
		if matchSubmission(strings.Split(string(cmdline), "\x00"), command, xmlName, stageName) {
			return true
		}
	}
	return false
}

func matchSubmission(words []string, command, xmlName, stageName string) bool {
	var isCommand, xmlMatch, stageMatch, submit bool
	prev := ""
	for _, word := range words {
		if strings.HasSuffix(word, command) {
			isCommand = true
		}
		switch prev {
		case "--xml":
			if word == xmlName {
				xmlMatch = true
			}
		case "--stage":
			if word == stageName {
				stageMatch = true
			}
		}
		if word == "--submit" || word == "--makeup" {
			submit = true
		}
		prev = word
	}
	return isCommand && submit && xmlMatch && stageMatch
}
