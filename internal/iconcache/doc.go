// Package iconcache extracts program icons and keeps them as PNG files in a
// cache directory keyed by the sanitized display name.
//
// A cached file is reused as long as it exists; nothing checks it against the
// program it was taken from. Extraction is best-effort: any failure means
// "no icon" and callers show Placeholder instead.
package iconcache
