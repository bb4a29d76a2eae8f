//go:build !(rp2040 || rp2350)

package fmtx

import "fmt"

func Printf(format string, a ...any) (int, error) { return fmt.Printf(format, a...) }
