// Package crawler walks the web breadth-first from seed URLs, honoring robots.txt
// and a politeness delay, and records the links it discovers in the frontier store.
package crawler
