package main

import "zooclient/internal/app"

func main() {
	app.Main()
}
