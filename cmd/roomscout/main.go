// Package main provides the entry point for the roomscout CLI.
//
// roomscout drives a real browser through a search engine to a lodging
// marketplace and saves the first few listings it finds as JSON.
//
// Usage:
//
//	roomscout search "airbnb in goa"
//	roomscout history
//	roomscout compare "airbnb in goa"
//
// See --help for all available options.
package main

func main() {
	Execute()
}
