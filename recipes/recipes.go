// Package recipes holds the built-in package recipes. Importing the
// package registers every recipe; the CLI does this with a blank
// import.
package recipes
