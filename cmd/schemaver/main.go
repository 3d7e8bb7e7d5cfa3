package main

import "github.com/aqasim81/schemaver/internal/cli"

func main() {
	cli.Execute()
}
