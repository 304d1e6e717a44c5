package plugin

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aarzilli/golua/lua"
)

// Run executes an installed plugin in a fresh Lua state with the standard
// libraries open. opts become the script's arg table (arg[0] is the plugin
// name) and print is redirected to out.
func (m *Manager) Run(name string, opts []string, out io.Writer) error {
	src, err := os.ReadFile(m.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("plugin %s is not installed", name)
		}
		return fmt.Errorf("failed to read plugin %s: %w", name, err)
	}

	L := lua.NewState()
	defer L.Close()
	L.OpenLibs()

	registerPrint(L, out)
	pushArgTable(L, name, opts)

	m.logger.WithField("plugin", name).Info("Running plugin")
	if err := L.DoString(string(src)); err != nil {
		return fmt.Errorf("plugin %s failed: %w", name, err)
	}
	return nil
}

// registerPrint replaces print so plugin output reaches the caller's writer.
// Values render through the script's own tostring, like stock print.
func registerPrint(L *lua.State, out io.Writer) {
	L.PushGoFunction(func(L *lua.State) int {
		top := L.GetTop()
		parts := make([]string, 0, top)
		for i := 1; i <= top; i++ {
			L.GetGlobal("tostring")
			L.PushValue(i)
			if err := L.Call(1, 1); err != nil {
				parts = append(parts, "?")
				continue
			}
			parts = append(parts, L.ToString(-1))
			L.Pop(1)
		}
		fmt.Fprintln(out, strings.Join(parts, "\t"))
		return 0
	})
	L.SetGlobal("print")
}

func pushArgTable(L *lua.State, name string, opts []string) {
	L.NewTable()
	L.PushInteger(0)
	L.PushString(name)
	L.SetTable(-3)
	for i, opt := range opts {
		L.PushInteger(int64(i + 1))
		L.PushString(opt)
		L.SetTable(-3)
	}
	L.SetGlobal("arg")
}
