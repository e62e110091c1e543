//go:build debug

package orderbook

import "fmt"

func ensure(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
