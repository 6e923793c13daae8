// SPDX-License-Identifier: GPL-3.0-or-later
package main

import (
	"fmt"
	"os"
	"os/user"

	"github.com/fatih/color"
	_ "github.com/tliron/commonlog/simple"

	"calyx/internal/config"
	"calyx/repl"
)

func main() {
	currentUser, err := user.Current()
	if err != nil {
		fmt.Printf("Error getting current user: %v\n", err)
		return
	}

	dir, err := os.Getwd()
	if err != nil {
		color.Red("%s", err)
		os.Exit(1)
	}
	cfg, path, err := config.Find(dir)
	if err != nil {
		color.Red("%s", err)
		os.Exit(1)
	}
	cfg.Configure(0)

	fmt.Printf("Welcome to the Calyx REPL, %s!\n", currentUser.Username)
	if path != "" {
		fmt.Printf("Using %s\n", path)
	}
	fmt.Println("Type :help for commands.")
	repl.Start(os.Stdin, os.Stdout, cfg)
}
