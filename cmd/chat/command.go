package main

import "strings"

type commandKind int

const (
	cmdSay commandKind = iota
	cmdDraft
	cmdSend
	cmdNewIdentity
	cmdWho
	cmdHelp
	cmdQuit
	cmdUnknown
)

type command struct {
	kind commandKind
	arg  string
}

// parseCommand reads one input line. A line without a leading slash is
// drafted and sent at once.
func parseCommand(line string) command {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdSay, arg: line}
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	switch strings.ToLower(name) {
	case "draft":
		return command{kind: cmdDraft, arg: arg}
	case "send":
		return command{kind: cmdSend}
	case "new":
		return command{kind: cmdNewIdentity}
	case "who":
		return command{kind: cmdWho}
	case "help":
		return command{kind: cmdHelp}
	case "quit", "exit":
		return command{kind: cmdQuit}
	default:
		return command{kind: cmdUnknown, arg: name}
	}
}

const helpText = `  <text>         draft and send
  /draft <text>  replace the draft, the 20s countdown starts
  /send          send the draft
  /new           new anonymous identity
  /who           show the current identity
  /quit          leave the room`
