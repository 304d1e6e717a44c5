package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/b0rdst31n/bluing/internal/plugin"
)

// pluginCmd represents the plugin command
var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Manage and run Lua plugins",
	Long: `Manage and run Lua plugins from the plugin directory.

Plugins are single .lua files. A plugin receives the options after its
name in the standard arg table and its print output goes to stdout.`,
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed plugins",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, err := newPluginManager(cmd)
		if err != nil {
			return err
		}
		names, err := m.List()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var pluginInstallCmd = &cobra.Command{
	Use:   "install PATH",
	Short: "Install a plugin file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newPluginManager(cmd)
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true
		name, err := m.Install(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Installed plugin %s\n", name)
		return nil
	},
}

var pluginUninstallCmd = &cobra.Command{
	Use:   "uninstall NAME",
	Short: "Uninstall a plugin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newPluginManager(cmd)
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true
		return m.Uninstall(args[0])
	},
}

var pluginRunCmd = &cobra.Command{
	Use:   "run NAME [-- OPTS...]",
	Short: "Run a plugin",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newPluginManager(cmd)
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true
		return m.Run(args[0], args[1:], os.Stdout)
	},
}

func newPluginManager(cmd *cobra.Command) (*plugin.Manager, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return plugin.NewManager(cfg.PluginDir, logger), nil
}

func init() {
	pluginCmd.AddCommand(pluginListCmd)
	pluginCmd.AddCommand(pluginInstallCmd)
	pluginCmd.AddCommand(pluginUninstallCmd)
	pluginCmd.AddCommand(pluginRunCmd)
}
