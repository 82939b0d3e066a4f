// Command scrutind serves the election workbook from a local SQLite table
// store and issues the bearer tokens the scrutin CLI presents to it.
package main
