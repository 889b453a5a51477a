package main

import "piforge/internal/piforge"

func main() {
	piforge.Main()
}
