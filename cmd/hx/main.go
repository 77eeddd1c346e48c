// hx extracts epic/issue hierarchies from GitLab and materializes them
// into a versioned local SQLite store.
package main

func main() {
	Execute()
}
