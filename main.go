package main

import "minishell/cmd"

func main() {
	cmd.Execute()
}
