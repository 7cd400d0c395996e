// Package sandboxtest provides an in-memory sandbox.Runner for adapter tests.
package sandboxtest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/panelkit/hostpanel/internal/sandbox"
)

// Call is one recorded invocation.
type Call struct {
	Privileged bool
	Name       string
	Args       []string
	// Stdin holds the content of the input file at the time of the call.
	Stdin string
}

// Line renders the call the way the sandbox would compose it.
func (c Call) Line() string {
	return sandbox.CommandLine(c.Name, c.Args...)
}

// Runner records calls and emulates the few file commands adapters rely on
// (cat, rm, mv, ln, crontab) against an in-memory file map.
type Runner struct {
	mu    sync.Mutex
	Calls []Call
	Files map[string]string
	// Hook may override the result of any call. Returning nil falls through
	// to the default emulation.
	Hook func(c Call) (*sandbox.Result, error)
}

// New returns an empty Runner.
func New() *Runner {
	return &Runner{Files: make(map[string]string)}
}

// FailOn makes every call whose command line contains substr exit with status 1.
func (r *Runner) FailOn(substr string) {
	prev := r.Hook
	r.Hook = func(c Call) (*sandbox.Result, error) {
		if strings.Contains(c.Line(), substr) {
			return &sandbox.Result{Output: "simulated failure", ExitCode: 1}, nil
		}
		if prev != nil {
			return prev(c)
		}
		return nil, nil
	}
}

// Lines returns the recorded command lines in order.
func (r *Runner) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Calls))
	for _, c := range r.Calls {
		out = append(out, c.Line())
	}
	return out
}

// Count returns how many recorded lines contain substr.
func (r *Runner) Count(substr string) int {
	n := 0
	for _, l := range r.Lines() {
		if strings.Contains(l, substr) {
			n++
		}
	}
	return n
}

func (r *Runner) Run(ctx context.Context, name string, args ...string) (*sandbox.Result, error) {
	return r.call(Call{Name: name, Args: args})
}

func (r *Runner) RunPrivileged(ctx context.Context, name string, args ...string) (*sandbox.Result, error) {
	return r.call(Call{Privileged: true, Name: name, Args: args})
}

func (r *Runner) RunPrivilegedInput(ctx context.Context, stdinPath, name string, args ...string) (*sandbox.Result, error) {
	data, err := os.ReadFile(stdinPath)
	if err != nil {
		return nil, err
	}
	return r.call(Call{Privileged: true, Name: name, Args: args, Stdin: string(data)})
}

// WriteFile records the cp and chmod the real sandbox issues and stores content.
func (r *Runner) WriteFile(ctx context.Context, path string, content []byte, mode os.FileMode) (*sandbox.Result, error) {
	res, err := r.call(Call{Privileged: true, Name: "cp", Args: []string{"<tmp>", path}})
	if err != nil || !res.OK() {
		return res, err
	}
	r.mu.Lock()
	r.Files[path] = string(content)
	r.mu.Unlock()
	return r.call(Call{Privileged: true, Name: "chmod", Args: []string{fmt.Sprintf("%o", mode.Perm()), path}})
}

func (r *Runner) call(c Call) (*sandbox.Result, error) {
	r.mu.Lock()
	r.Calls = append(r.Calls, c)
	hook := r.Hook
	r.mu.Unlock()

	if hook != nil {
		if res, err := hook(c); res != nil || err != nil {
			return res, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emulate(c), nil
}

func (r *Runner) emulate(c Call) *sandbox.Result {
	ok := &sandbox.Result{}
	switch c.Name {
	case "cat":
		if len(c.Args) == 0 {
			return ok
		}
		content, found := r.Files[c.Args[len(c.Args)-1]]
		if !found {
			return &sandbox.Result{Output: "cat: " + c.Args[0] + ": No such file or directory", ExitCode: 1}
		}
		return &sandbox.Result{Output: content}
	case "rm":
		for _, a := range c.Args {
			if !strings.HasPrefix(a, "-") {
				for p := range r.Files {
					if p == a || strings.HasPrefix(p, strings.TrimSuffix(a, "/")+"/") {
						delete(r.Files, p)
					}
				}
			}
		}
	case "mv":
		if len(c.Args) >= 2 {
			src, dst := c.Args[len(c.Args)-2], c.Args[len(c.Args)-1]
			if content, found := r.Files[src]; found {
				r.Files[dst] = content
				delete(r.Files, src)
			}
		}
	case "crontab":
		return r.crontab(c)
	}
	return ok
}

func (r *Runner) crontab(c Call) *sandbox.Result {
	var user string
	list := false
	for i, a := range c.Args {
		switch a {
		case "-u":
			if i+1 < len(c.Args) {
				user = c.Args[i+1]
			}
		case "-l":
			list = true
		}
	}
	key := CrontabKey(user)
	if list {
		content, found := r.Files[key]
		if !found {
			return &sandbox.Result{Output: "no crontab for " + user, ExitCode: 1}
		}
		return &sandbox.Result{Output: content}
	}
	r.Files[key] = c.Stdin
	return &sandbox.Result{}
}

// CrontabKey is the Files key holding user's crontab.
func CrontabKey(user string) string {
	return "crontab:" + user
}
