// Package terminal provides utilities for terminal operations such as
// clearing text and reading secrets.
package terminal

import (
	"fmt"
	"math"
	"os"

	"golang.org/x/term"
)

// Width returns the stdout terminal width, or 80 when unavailable.
func Width() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 80
}

// ClearPreviousLines clears text from the terminal that was previously printed.
// It calculates how many lines were used by the provided text based on the current
// terminal width, then moves up and clears each line.
//
// This is used to remove a confirmation prompt once it has been answered.
//
// Parameters:
//   - textLength: The total number of characters in the text to clear (prompt + user input)
func ClearPreviousLines(textLength int) {
	totalLines := int(math.Ceil(float64(textLength) / float64(Width())))
	if totalLines < 1 {
		totalLines = 1
	}

	// After Enter, cursor is on a new line below the input.
	linesToClear := totalLines + 1
	for i := 0; i < linesToClear; i++ {
		fmt.Print("\r\x1b[2K")
		if i < linesToClear-1 {
			fmt.Print("\x1b[1A")
		}
	}
}
