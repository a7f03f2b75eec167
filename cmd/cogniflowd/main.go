package main

import "github.com/cogniflow/cogniflow/internal/cmd"

func main() {
	cmd.Execute()
}
