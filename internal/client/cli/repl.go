package cli

import (
	"bufio"
	"context"
	"fmt"
	"sort"
	"strings"
)

// printlnFn is a test seam for REPL output.
var printlnFn = fmt.Println

// command is one REPL verb. run receives the words after the verb.
type command struct {
	usage      string
	needsLogin bool
	run        func(ctx context.Context, args []string) error
}

// execIface is the surface the REPL dispatches to. App implements it; tests
// use a stub.
type execIface interface {
	isLoggedIn() bool
	commands() map[string]command
}

// runREPL reads one command per line from scanner and dispatches it. Handler
// errors are printed and the loop goes on. It returns on EOF or on "exit" /
// "quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	cmds := a.commands()
	for {
		printlnFn(fmt.Sprintf("buildlog %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		name, args := parts[0], parts[1:]

		switch name {
		case "help":
			printlnFn(helpText(cmds, a.isLoggedIn()))
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		cmd, ok := cmds[name]
		if !ok {
			printlnFn("Unknown command:", name)
			continue
		}
		if cmd.needsLogin && !a.isLoggedIn() {
			printlnFn("Please login first")
			continue
		}
		if err := cmd.run(ctx, args); err != nil {
			printlnFn("Error:", err.Error())
		}
	}
}

func helpText(cmds map[string]command, loggedIn bool) string {
	names := make([]string, 0, len(cmds))
	for n, c := range cmds {
		if c.needsLogin && !loggedIn {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, n := range names {
		fmt.Fprintf(&b, "  %s\n", cmds[n].usage)
	}
	b.WriteString("  help\n  exit")
	return b.String()
}

func (a *App) commands() map[string]command {
	return map[string]command{
		"login":      {usage: "login", run: a.Login},
		"logout":     {usage: "logout", run: a.Logout},
		"categories": {usage: "categories", run: a.Categories},
		"new":        {usage: "new", run: a.New},
		"edit":       {usage: "edit <id>", run: a.Edit},
		"title":      {usage: "title <text>", run: a.Title},
		"category":   {usage: "category <id>", run: a.Category},
		"desc":       {usage: "desc", run: a.Description},
		"addimage":   {usage: "addimage <path>", run: a.AddImage},
		"addfile":    {usage: "addfile <path>", run: a.AddFile},
		"rmimage":    {usage: "rmimage <name>", run: a.RemoveImage},
		"rmfile":     {usage: "rmfile <name>", run: a.RemoveFile},
		"mvimage":    {usage: "mvimage <from> <to>", run: a.MoveImage},
		"getfile":    {usage: "getfile <name> <dest>", run: a.GetFile},
		"step":       {usage: "step add|rm|title|desc|addimage|addfile|rmimage|rmfile ...", run: a.Step},
		"show":       {usage: "show", run: a.Show},
		"validate":   {usage: "validate", run: a.Validate},
		"publish":    {usage: "publish", needsLogin: true, run: a.Publish},
		"status":     {usage: "status", run: a.Status},
		"abandon":    {usage: "abandon", run: a.Abandon},
		"dismiss":    {usage: "dismiss", run: a.Dismiss},
		"discard":    {usage: "discard", run: a.Discard},
	}
}
