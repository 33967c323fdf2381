// Command marketctl is a command line client for the marketd HTTP API.
package main

func main() {
	Execute()
}
