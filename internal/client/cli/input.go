package cli

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/fortifile/fortifile/internal/common"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var codePattern = regexp.MustCompile(`^\d{6}$`)

// GetCode prints a prompt to w and reads a 6-digit decryption code from the
// terminal without echo.
func GetCode(prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return "", err
	}
	raw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}

	code := string(raw)
	common.WipeByteArray(raw)
	if !codePattern.MatchString(code) {
		return "", fmt.Errorf("%w: code must be 6 digits", common.ErrorValidation)
	}
	return code, nil
}
