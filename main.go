package main

import "mentorreport/internal/app"

func main() {
	app.Main()
}
