package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// PromptForFile prompts the user interactively for a file path.
// Returns an empty string if the user enters nothing.
func PromptForFile(label string) string {
	fmt.Printf("%s: ", label)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read input")
		return ""
	}

	return strings.TrimSpace(input)
}

// PromptYesNo asks a y/N question and returns true only on an explicit yes.
func PromptYesNo(question string) bool {
	fmt.Printf("%s (y/N): ", question)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read input, assuming no")
		return false
	}

	input = strings.TrimSpace(strings.ToLower(input))
	return input == "y" || input == "yes"
}
