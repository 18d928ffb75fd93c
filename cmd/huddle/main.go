package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "huddle",
	Short: "Huddle — private team photo and video sharing",
	Long:  "Huddle is a private media sharing app for sports teams. The same binary runs the backend (serve, migrate, seed) and the client commands parents and coaches use (join, verify, ls, upload, get, rm).",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: configs/huddle.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
