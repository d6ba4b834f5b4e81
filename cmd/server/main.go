package main

import "wink/internal/app/server"

func main() {
	server.Run()
}
