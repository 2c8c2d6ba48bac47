package logger

import (
	"fmt"
	"os"
)

func ExamplePrefixedWriter_Write_withPrefixSet() {
	w := NewPrefixedWriter("PREFIXED: ", os.Stdout)

	someLogs := "First line of log.\nSecond line.\n\tThird line a little different\n"
	if _, err := w.Write([]byte(someLogs)); err != nil {
		fmt.Print("Unexpected write error: ", err)
	}

	// Output:
	// PREFIXED: First line of log.
	// PREFIXED: Second line.
	// PREFIXED: 	Third line a little different
}

func ExamplePrefixedWriter_Write_withNoPrefixSet() {
	w := NewPrefixedWriter("", os.Stdout)

	someLogs := "First line of log.\nSecond line.\n\tThird line a little different\n"
	if _, err := w.Write([]byte(someLogs)); err != nil {
		fmt.Print("Unexpected write error: ", err)
	}

	// Output:
	// First line of log.
	// Second line.
	// 	Third line a little different
}
