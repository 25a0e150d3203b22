package main

import "github.com/fakeyudi/pagemark/cmd"

func main() {
	cmd.Execute()
}
