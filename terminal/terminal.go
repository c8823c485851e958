// Package terminal implements the interactive REPL: a 256-byte line
// buffer fed by keystrokes, a whitespace tokenizer, and a command
// dispatcher built on urfave/cli so each built-in reads like a small CLI
// subcommand instead of a hand-rolled switch statement.
package terminal

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	kernerr "github.com/nullboot/kernel/errors"
	"github.com/nullboot/kernel/fat32"
	"github.com/nullboot/kernel/vgatext"
)

// LineBufferSize is the fixed capacity of the input line buffer.
const LineBufferSize = 256

// MaxTokens bounds how many whitespace-separated tokens a line tokenizes
// into; anything past this is dropped.
const MaxTokens = 32

// Terminal owns the line buffer and dispatches completed lines to the
// FAT32 engine and text console.
type Terminal struct {
	volume  *fat32.Volume
	console *vgatext.Console
	line    []byte
	app     *cli.App
}

// New builds a Terminal wired to volume for file operations and console
// for output.
func New(volume *fat32.Volume, console *vgatext.Console) *Terminal {
	t := &Terminal{volume: volume, console: console}
	t.app = t.buildApp()
	return t
}

// OnKeyDown appends one printable keystroke to the line buffer, handles
// backspace, and dispatches the buffered line on Enter. This is the
// handler the keyboard IRQ path calls with each decoded character.
func (t *Terminal) OnKeyDown(ch byte) {
	switch ch {
	case '\r', '\n':
		t.console.PutChar('\n')
		t.dispatch(string(t.line))
		t.line = t.line[:0]
	case '\b':
		if len(t.line) > 0 {
			t.line = t.line[:len(t.line)-1]
			t.console.PutChar('\b')
		}
	default:
		if len(t.line) < LineBufferSize {
			t.line = append(t.line, ch)
			t.console.PutChar(ch)
		}
	}
}

// tokenize splits line on runs of spaces, keeping at most MaxTokens
// tokens.
func tokenize(line string) []string {
	tokens := strings.Fields(line)
	if len(tokens) > MaxTokens {
		tokens = tokens[:MaxTokens]
	}
	return tokens
}

// dispatch tokenizes line and runs it through the command app. An empty
// line is a no-op; an unrecognized command name prints an error rather
// than aborting the terminal.
func (t *Terminal) dispatch(line string) {
	tokens := tokenize(line)
	if len(tokens) == 0 {
		return
	}
	args := append([]string{"terminal"}, tokens...)
	if err := t.app.Run(args); err != nil {
		t.console.Printf("%s\n", err.Error())
	}
}

func (t *Terminal) buildApp() *cli.App {
	return &cli.App{
		Name:                   "terminal",
		Usage:                  "interactive FAT32 shell",
		UseShortOptionHandling: true,
		CommandNotFound: func(ctx *cli.Context, command string) {
			t.console.Printf("unknown command: %s\n", command)
		},
		Commands: []*cli.Command{
			t.lsCommand(),
			t.mkdirCommand(),
			t.touchCommand(),
			t.rmCommand(),
			t.rmdirCommand(),
			t.catCommand(),
			t.writeCommand(),
			t.echoCommand(),
			t.clearCommand(),
			t.helpCommand(),
		},
	}
}

func (t *Terminal) lsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ls",
		Usage: "list a directory",
		Action: func(ctx *cli.Context) error {
			path := ctx.Args().First()
			if path == "" {
				path = "/"
			}
			entries, err := t.volume.List(path)
			if err != nil {
				return err
			}
			for _, e := range entries {
				t.console.Printf("%s\n", e.Name)
			}
			return nil
		},
	}
}

func (t *Terminal) mkdirCommand() *cli.Command {
	return &cli.Command{
		Name:  "mkdir",
		Usage: "create a directory",
		Action: func(ctx *cli.Context) error {
			path := ctx.Args().First()
			if path == "" {
				return kernerr.ErrInvalidPath
			}
			return t.volume.Mkdir(path)
		},
	}
}

func (t *Terminal) touchCommand() *cli.Command {
	return &cli.Command{
		Name:  "touch",
		Usage: "create an empty file",
		Action: func(ctx *cli.Context) error {
			path := ctx.Args().First()
			if path == "" {
				return kernerr.ErrInvalidPath
			}
			return t.volume.Touch(path)
		},
	}
}

func (t *Terminal) rmCommand() *cli.Command {
	return &cli.Command{
		Name:  "rm",
		Usage: "delete a file",
		Action: func(ctx *cli.Context) error {
			path := ctx.Args().First()
			if path == "" {
				return kernerr.ErrInvalidPath
			}
			return t.volume.Remove(path)
		},
	}
}

func (t *Terminal) rmdirCommand() *cli.Command {
	return &cli.Command{
		Name:  "rmdir",
		Usage: "recursively delete a directory",
		Action: func(ctx *cli.Context) error {
			path := ctx.Args().First()
			if path == "" {
				return kernerr.ErrInvalidPath
			}
			return t.volume.Rmdir(path)
		},
	}
}

func (t *Terminal) catCommand() *cli.Command {
	return &cli.Command{
		Name:  "cat",
		Usage: "print a file's contents",
		Action: func(ctx *cli.Context) error {
			path := ctx.Args().First()
			if path == "" {
				return kernerr.ErrInvalidPath
			}
			fd, err := t.volume.Open(path)
			if err != nil {
				return err
			}
			defer t.volume.Close(fd)

			buf := make([]byte, fat32.SectorSize)
			for {
				n, err := t.volume.Read(fd, buf)
				if n > 0 {
					t.console.Printf("%s", string(buf[:n]))
				}
				if err != nil || n == 0 {
					break
				}
			}
			t.console.PutChar('\n')
			return nil
		},
	}
}

func (t *Terminal) writeCommand() *cli.Command {
	return &cli.Command{
		Name:      "write",
		Usage:     "write the remaining arguments to a file",
		ArgsUsage: "PATH TEXT...",
		Action: func(ctx *cli.Context) error {
			args := ctx.Args().Slice()
			if len(args) < 1 {
				return kernerr.ErrInvalidPath
			}
			path := args[0]
			text := strings.Join(args[1:], " ")

			if _, err := t.volume.Resolve(path); err != nil {
				if err := t.volume.Touch(path); err != nil {
					return err
				}
			}
			fd, err := t.volume.Open(path)
			if err != nil {
				return err
			}
			defer t.volume.Close(fd)
			_, err = t.volume.Write(fd, []byte(text))
			return err
		},
	}
}

func (t *Terminal) echoCommand() *cli.Command {
	return &cli.Command{
		Name:  "echo",
		Usage: "print arguments",
		Action: func(ctx *cli.Context) error {
			t.console.Printf("%s\n", strings.Join(ctx.Args().Slice(), " "))
			return nil
		},
	}
}

func (t *Terminal) clearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "clear the screen",
		Action: func(ctx *cli.Context) error {
			t.console.Clear()
			return nil
		},
	}
}

func (t *Terminal) helpCommand() *cli.Command {
	return &cli.Command{
		Name:  "help",
		Usage: "list available commands",
		Action: func(ctx *cli.Context) error {
			t.console.Printf("%s\n", helpText)
			return nil
		},
	}
}

// helpText is the one-line summary printed by the "help" command.
var helpText = fmt.Sprintf("commands: ls mkdir touch rm rmdir cat write echo clear help")
