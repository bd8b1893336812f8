package main

import "potability/internal/commander"

func main() {
	commander.Execute()
}
