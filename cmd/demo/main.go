package main

import "log"

func main() {
	log.Print("Initializing APort demo resource server")
	if err := Run(); err != nil {
		log.Fatal(err)
	}
}
