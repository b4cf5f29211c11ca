// Package main 提供 vyaparctl 命令行工具，用于在不启动服务的情况下调用意图识别、PDF 生成与数据库维护。
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vyapar-go/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "vyaparctl",
	Short: "VyaparGPT command line tools",
	Long:  "vyaparctl runs the VyaparGPT intent classifier, PDF generators and database maintenance tasks from the command line.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./configs/config.yaml", "Path to config.yaml")
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
