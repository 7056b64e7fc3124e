// Package report writes search results.
//
// Three writers implement Writer:
//   - JSONWriter: the records array, the format of the output file
//   - MarkdownWriter: tables for pasting into notes and issues
//   - SimpleWriter: a plain text summary for the terminal
//
// SaveJSON writes the records array to the output file.
package report
