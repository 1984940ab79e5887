package math

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownUpAxis is returned by ParseUpAxis for values outside Y, Z, -Y, -Z.
var ErrUnknownUpAxis = errors.New("unknown up axis")

// UpAxis names the world axis a scene was authored with as "up".
type UpAxis string

// Supported up axes.
const (
	UpY    UpAxis = "Y"
	UpZ    UpAxis = "Z"
	UpNegY UpAxis = "-Y"
	UpNegZ UpAxis = "-Z"
)

// ParseUpAxis parses an up axis name. Empty input means Y.
func ParseUpAxis(s string) (UpAxis, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "Y", "+Y":
		return UpY, nil
	case "Z", "+Z":
		return UpZ, nil
	case "-Y":
		return UpNegY, nil
	case "-Z":
		return UpNegZ, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownUpAxis, s)
}

// Correction returns the rotation that maps this axis onto +Y.
//
//	Y:  identity
//	Z:  -90 degrees about X (+Z -> +Y)
//	-Y: 180 degrees about X (-Y -> +Y)
//	-Z: +90 degrees about X (-Z -> +Y)
func (a UpAxis) Correction() Mat4 {
	switch a {
	case UpZ:
		return RotateXDeg(-90)
	case UpNegY:
		return RotateXDeg(180)
	case UpNegZ:
		return RotateXDeg(90)
	}
	return Identity()
}
