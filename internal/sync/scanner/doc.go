// Package scanner walks local roots and yields assets admitted by the
// inclusion rules, each carrying a streaming content digest.
package scanner
