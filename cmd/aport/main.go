package main

import (
	"log"

	"github.com/aporthq/aport-go/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Fatal(err)
	}
}
