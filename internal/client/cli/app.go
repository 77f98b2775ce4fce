package cli

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/fortifile/fortifile/internal/cryptox"
)

// App is the command-line front end for sealing and opening files locally.
type App struct {
	out io.Writer
}

// NewApp constructs an App writing its output to out.
func NewApp(out io.Writer) *App {
	return &App{out: out}
}

const usage = `usage:
  encrypt <file> [-o <output>] [-g] [-k]   seal a file with a decryption code
  decrypt <file> [-o <output>]             open a sealed file

encrypt flags:
  -o  output path (default <file>.enc)
  -g  generate a fresh code instead of prompting
  -k  also print the derived key as a JWK
`

// Run dispatches the subcommand. args is os.Args[1:].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) < 1 {
		fmt.Fprint(a.out, usage)
		return fmt.Errorf("missing command")
	}

	switch args[0] {
	case "encrypt":
		return a.runEncrypt(args[1:])
	case "decrypt":
		return a.runDecrypt(args[1:])
	default:
		fmt.Fprint(a.out, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// generateCode returns a uniformly random 6-digit code.
func generateCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		panic(fmt.Errorf("error generating code: %w", err))
	}
	return fmt.Sprintf("%06d", n.Int64())
}

func (a *App) runEncrypt(args []string) error {
	fs := flag.NewFlagSet("encrypt", flag.ContinueOnError)
	fs.SetOutput(a.out)
	output := fs.String("o", "", "output path")
	genCode := fs.Bool("g", false, "generate a fresh code")
	showKey := fs.Bool("k", false, "print the derived key as a JWK")

	path, err := parseFileArg(fs, args)
	if err != nil {
		return err
	}

	plaintext, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}

	var code string
	if *genCode {
		code = generateCode()
		fmt.Fprintf(a.out, "Decryption code: %s\n", code)
	} else {
		code, err = GetCode("Enter decryption code", a.out)
		if err != nil {
			return err
		}
		confirm, err := GetCode("Repeat decryption code", a.out)
		if err != nil {
			return err
		}
		if confirm != code {
			return fmt.Errorf("codes do not match")
		}
	}

	sealed, err := Seal(plaintext, code)
	if err != nil {
		return err
	}

	dst := *output
	if dst == "" {
		dst = path + ".enc"
	}
	if err := os.WriteFile(dst, sealed, 0o600); err != nil {
		return fmt.Errorf("error writing %s: %w", dst, err)
	}
	fmt.Fprintf(a.out, "Sealed %s -> %s\n", path, dst)

	if *showKey {
		if err := a.printJWK(sealed, code); err != nil {
			return err
		}
	}
	return nil
}

// printJWK re-derives the key from the sealed header and prints it in JWK
// form, for interchange with tools that expect a raw key.
func (a *App) printJWK(sealed []byte, code string) error {
	salt := sealed[len(sealMagic) : len(sealMagic)+sealSaltSize]
	key := cryptox.DeriveKeyFromCode(code, salt)
	jwk, err := cryptox.ExportKey(key)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Key (JWK): %s\n", jwk)
	return nil
}

func (a *App) runDecrypt(args []string) error {
	fs := flag.NewFlagSet("decrypt", flag.ContinueOnError)
	fs.SetOutput(a.out)
	output := fs.String("o", "", "output path")

	path, err := parseFileArg(fs, args)
	if err != nil {
		return err
	}

	sealed, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}

	code, err := GetCode("Enter decryption code", a.out)
	if err != nil {
		return err
	}

	plaintext, err := Open(sealed, code)
	if err != nil {
		return err
	}

	dst := *output
	if dst == "" {
		dst = strings.TrimSuffix(path, ".enc")
		if dst == path {
			dst = path + ".dec"
		}
	}
	if err := os.WriteFile(dst, plaintext, 0o600); err != nil {
		return fmt.Errorf("error writing %s: %w", dst, err)
	}
	fmt.Fprintf(a.out, "Opened %s -> %s\n", path, dst)
	return nil
}

// parseFileArg accepts either "<file> [flags]" or "[flags] <file>".
func parseFileArg(fs *flag.FlagSet, args []string) (string, error) {
	var path string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		path = args[0]
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if path == "" {
		path = fs.Arg(0)
	}
	if path == "" {
		return "", fmt.Errorf("missing file argument")
	}
	return path, nil
}
