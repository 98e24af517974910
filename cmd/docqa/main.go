// Package main is the entry point for the document QA service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/imezh/RAG-agent/cmd/docqa/app"
)

func main() {
	app.Run()
}
