// Package loader reads documents for the semantic corpus from text, HTML
// and PDF files.
package loader
