package main

import "Folium/cmd"

func main() {
	// The engine, library and adapters are constructed in the root
	// command once the global flags are parsed, so flag overrides can
	// win over the environment configuration.
	cmd.Execute()
}
