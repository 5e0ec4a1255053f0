package main

import "github.com/rafall04/cctv-sub000/cmd"

func main() {
	cmd.Execute()
}
