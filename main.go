package main

import (
	"github.com/majestrate/slimweb/cmd/slimweb"
)

func main() {
	slimweb.Run()
}
