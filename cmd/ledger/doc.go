// Command ledger keeps the video ledger of the assembly's plenary sessions in
// step with the public site and exposes the publishing and mirroring paths.
//
// Usage:
//
//	ledger crawl [--start-url URL] [--min-date YYYY-MM-DD] [--max-sessions N] [--mirror]
//	ledger pending [--limit N]
//	ledger publish --session N --date YYYY-MM-DD --time HH:MM --external-id ID
//	ledger stats
//	ledger mirror
package main
