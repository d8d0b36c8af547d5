package main

import "github.com/apernet/bequic/app/cmd"

func main() {
	cmd.Execute()
}
