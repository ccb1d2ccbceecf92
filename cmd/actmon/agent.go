package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/activity_mon/internal/config"
	"github.com/eliteGoblin/focusd/activity_mon/internal/infra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage the login agent that starts 'actmon run'",
}

var agentInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Start actmon at login",
	Long: `Installs a LaunchAgent (macOS) or systemd user unit (Linux) running
'actmon run' for the current user. Reinstalling picks up a moved binary.`,
	RunE: runAgentInstall,
}

var agentUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop starting actmon at login",
	RunE:  runAgentUninstall,
}

var agentStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the login agent is installed",
	RunE:  runAgentStatus,
}

func init() {
	agentCmd.AddCommand(agentInstallCmd)
	agentCmd.AddCommand(agentUninstallCmd)
	agentCmd.AddCommand(agentStatusCmd)
	rootCmd.AddCommand(agentCmd)
}

func loginAgent(cmd *cobra.Command) (*infra.LoginAgent, error) {
	cfg, err := config.Load(cmd)
	if err != nil {
		return nil, err
	}
	paths, err := prepareDataDir(cfg)
	if err != nil {
		return nil, err
	}
	return infra.NewLoginAgent(&infra.RealCommandRunner{}, paths.DataDir)
}

func executablePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return exe, nil
}

func runAgentInstall(cmd *cobra.Command, args []string) error {
	agent, err := loginAgent(cmd)
	if err != nil {
		return err
	}
	exe, err := executablePath()
	if err != nil {
		return err
	}

	if agent.IsInstalled() && !agent.NeedsUpdate(exe) {
		fmt.Printf("Login agent already installed at %s\n", agent.Path())
		return nil
	}
	if err := agent.Install(cmd.Context(), exe); err != nil {
		return err
	}
	fmt.Printf("Login agent installed at %s\n", agent.Path())
	return nil
}

func runAgentUninstall(cmd *cobra.Command, args []string) error {
	agent, err := loginAgent(cmd)
	if err != nil {
		return err
	}
	if err := agent.Uninstall(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Login agent removed")
	return nil
}

func runAgentStatus(cmd *cobra.Command, args []string) error {
	agent, err := loginAgent(cmd)
	if err != nil {
		return err
	}
	if !agent.IsInstalled() {
		fmt.Println("Login agent: not installed")
		return nil
	}
	fmt.Printf("Login agent: installed (%s)\n", agent.Path())
	if exe, err := executablePath(); err == nil && agent.NeedsUpdate(exe) {
		fmt.Println("  Points at a different binary; run 'actmon agent install' to update")
	}
	return nil
}
