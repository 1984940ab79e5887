// Package formats provides parsers for mesh source files loaded into a scene.
package formats

// Note: STL (binary and ASCII) is implemented in stl.go
